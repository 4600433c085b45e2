package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultTickSize = 0.05

// Instrument describes a tradable symbol.
type Instrument struct {
	Symbol   string  `yaml:"symbol" json:"symbol"`
	Exchange string  `yaml:"exchange" json:"exchange"`
	Segment  string  `yaml:"segment" json:"segment"`
	TickSize float64 `yaml:"tick_size" json:"tick_size"`
	LotSize  int     `yaml:"lot_size" json:"lot_size"`
}

// DefaultInstruments are the index instruments traded by default.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Symbol: "NIFTY", Exchange: "NSE", Segment: "INDEX", TickSize: DefaultTickSize, LotSize: 50},
		{Symbol: "BANKNIFTY", Exchange: "NSE", Segment: "INDEX", TickSize: DefaultTickSize, LotSize: 30},
		{Symbol: "FINNIFTY", Exchange: "NSE", Segment: "INDEX", TickSize: DefaultTickSize, LotSize: 60},
	}
}

// QuickBreadthBasket is the liquid NSE basket used for computed breadth.
func QuickBreadthBasket() []string {
	return []string{
		"TCS", "INFY", "RELIANCE", "HDFCBANK", "ICICIBANK",
		"SBIN", "HINDUNILVR", "ITC", "KOTAKBANK", "LT",
		"AXISBANK", "MARUTI", "SUNPHARMA", "TATASTEEL", "BHARTIARTL",
	}
}

// NormalizeSymbol upper-cases and trims a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// RoundToTick rounds price to the nearest multiple of tick.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	return decimal.NewFromFloat(price).Div(t).Round(0).Mul(t).InexactFloat64()
}
