package market

import "time"

// Direction of a trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign is +1 for LONG and -1 for SHORT.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Side is the order side that opens a position in this direction.
func (d Direction) Side() Side {
	if d == Short {
		return Sell
	}
	return Buy
}

// Side of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OHLC is a bar: a previous session or the first one-minute candle.
type OHLC struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	VWAP   float64 `json:"vwap"`
}

func (c OHLC) Range() float64 { return c.High - c.Low }

func (c OHLC) UpperWick() float64 { return c.High - max(c.Open, c.Close) }

func (c OHLC) LowerWick() float64 { return min(c.Open, c.Close) - c.Low }

// UpperWickPct is the upper wick as a percentage of range, 0 for a flat bar.
func (c OHLC) UpperWickPct() float64 {
	r := c.Range()
	if r <= 0 {
		return 0
	}
	return c.UpperWick() / r * 100
}

// BodyPct is the candle body as a percentage of range, 0 for a flat bar.
func (c OHLC) BodyPct() float64 {
	r := c.Range()
	if r <= 0 {
		return 0
	}
	body := c.Close - c.Open
	if body < 0 {
		body = -body
	}
	return body / r * 100
}

// Quote is a point-in-time price snapshot for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	LastPrice float64   `json:"last_price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	PrevClose float64   `json:"prev_close"`
	ChangePct float64   `json:"change_pct"`
	Volume    int64     `json:"volume"` // cumulative for the session
	Timestamp time.Time `json:"timestamp"`
}

// BreadthReading is a raw advance/decline count from a breadth feed.
type BreadthReading struct {
	Advances  int       `json:"advances"`
	Declines  int       `json:"declines"`
	Unchanged int       `json:"unchanged"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Fallback  bool      `json:"fallback"`
}

// NeutralReading is the split used when no breadth data is available.
func NeutralReading(at time.Time) BreadthReading {
	return BreadthReading{Advances: 100, Declines: 100, Unchanged: 50, Timestamp: at, Source: "neutral", Fallback: true}
}

// PreMarketData is everything known about a symbol before the first candle.
type PreMarketData struct {
	Symbol     string  `json:"symbol"`
	PrevClose  float64 `json:"prev_close"`
	PrevHigh   float64 `json:"prev_high"`
	PrevLow    float64 `json:"prev_low"`
	PrevVWAP   float64 `json:"prev_vwap"`
	PrevVolume int64   `json:"prev_volume"`
	TodayOpen  float64 `json:"today_open"`
	Gap        GapInfo `json:"gap"`
}

// FirstCandle is the completed first one-minute candle and its volume ratio
// against the previous session's average minute.
type FirstCandle struct {
	OHLC
	VolumeRatio float64 `json:"volume_ratio"`
}

// NewFirstCandle derives the volume ratio from the previous session volume
// spread over sessionMinutes. The ratio is 1.0 when either side is unknown.
func NewFirstCandle(c OHLC, prevVolume int64, sessionMinutes int) FirstCandle {
	ratio := 1.0
	if prevVolume > 0 && sessionMinutes > 0 && c.Volume > 0 {
		avg := float64(prevVolume) / float64(sessionMinutes)
		ratio = float64(c.Volume) / avg
	}
	return FirstCandle{OHLC: c, VolumeRatio: ratio}
}
