package outbox

import (
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
)

// FillSimulator fills paper orders instantly with a fixed slippage against
// the taker: buys pay up, sells receive less.
type FillSimulator struct {
	slippageBps int
	tickSize    func(symbol string) float64
}

func NewFillSimulator(slippageBps int, tickSize func(symbol string) float64) *FillSimulator {
	if tickSize == nil {
		tickSize = func(string) float64 { return market.DefaultTickSize }
	}
	return &FillSimulator{slippageBps: max(slippageBps, 0), tickSize: tickSize}
}

// Fill prices order at ref plus slippage, rounded to the symbol's tick.
func (fs *FillSimulator) Fill(order Order, ref float64, at time.Time) Fill {
	slip := float64(fs.slippageBps) / 10000
	price := ref
	switch order.Side {
	case market.Buy:
		price = ref * (1 + slip)
	case market.Sell:
		price = ref * (1 - slip)
	}
	if fs.slippageBps > 0 {
		price = market.RoundToTick(price, fs.tickSize(order.Symbol))
	}
	return Fill{
		OrderID:     order.ID,
		Symbol:      order.Symbol,
		Quantity:    order.Quantity,
		Price:       price,
		Side:        order.Side,
		Timestamp:   at.UTC(),
		SlippageBps: fs.slippageBps,
	}
}
