package position

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/setup"
)

// ExitReason is why a position was closed.
type ExitReason string

const (
	ExitTarget       ExitReason = "TARGET"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTime         ExitReason = "TIME_BASED"
	ExitBreakeven    ExitReason = "BREAKEVEN"
	ExitStrategyStop ExitReason = "STRATEGY_STOP"
)

// ExitReasons lists every exit reason in histogram order.
var ExitReasons = []ExitReason{ExitTarget, ExitStopLoss, ExitTime, ExitBreakeven, ExitStrategyStop}

// ScratchThreshold is the absolute net P&L under which a trade counts as a scratch.
const ScratchThreshold = 10.0

// Charges is the cost breakdown of one round trip.
type Charges struct {
	Brokerage  float64 `json:"brokerage"`
	STT        float64 `json:"stt"`
	TxnCharges float64 `json:"txn_charges"`
	GST        float64 `json:"gst"`
	Total      float64 `json:"total"`
}

// CostModel computes round-trip charges for an intraday index trade.
type CostModel struct {
	brokerage decimal.Decimal
	stt       decimal.Decimal
	txn       decimal.Decimal
	gst       decimal.Decimal
}

func NewCostModel(c config.Costs) CostModel {
	hundred := decimal.NewFromInt(100)
	return CostModel{
		brokerage: decimal.NewFromFloat(c.BrokeragePerOrder),
		stt:       decimal.NewFromFloat(c.STTPct).Div(hundred),
		txn:       decimal.NewFromFloat(c.TxnChargePct).Div(hundred),
		gst:       decimal.NewFromFloat(c.GSTPct).Div(hundred),
	}
}

// Compute charges brokerage on both orders and STT plus exchange charges on
// exit turnover. GST applies to one order's brokerage plus exchange charges.
func (m CostModel) Compute(exitPrice float64, qty int) Charges {
	turnover := decimal.NewFromFloat(exitPrice).Mul(decimal.NewFromInt(int64(qty)))
	brokerage := m.brokerage.Mul(decimal.NewFromInt(2))
	stt := turnover.Mul(m.stt)
	txn := turnover.Mul(m.txn)
	gst := m.brokerage.Add(txn).Mul(m.gst)
	total := brokerage.Add(stt).Add(txn).Add(gst)
	return Charges{
		Brokerage:  brokerage.InexactFloat64(),
		STT:        stt.InexactFloat64(),
		TxnCharges: txn.InexactFloat64(),
		GST:        gst.InexactFloat64(),
		Total:      total.InexactFloat64(),
	}
}

// TradeResult is the immutable record of a closed position.
type TradeResult struct {
	PositionID string           `json:"position_id"`
	Symbol     string           `json:"symbol"`
	Setup      setup.Type       `json:"setup"`
	Direction  market.Direction `json:"direction"`

	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	Quantity   int        `json:"quantity"`
	ExitReason ExitReason `json:"exit_reason"`

	GrossPnl  float64 `json:"gross_pnl"`
	Charges   Charges `json:"charges"`
	NetPnl    float64 `json:"net_pnl"`
	ReturnPct float64 `json:"return_pct"`

	MaxFavorableExcursion float64 `json:"mfe"`
	MaxAdverseExcursion   float64 `json:"mae"`
	HoldingMinutes        float64 `json:"holding_minutes"`
	MovedToBreakeven      bool    `json:"moved_to_breakeven"`

	Gap          market.GapInfo      `json:"gap"`
	Breadth      market.BreadthClass `json:"breadth"`
	ADRatio      float64             `json:"ad_ratio"`
	Confidence   float64             `json:"confidence"`
	SignalMinute int                 `json:"signal_minute"`
}

func (t TradeResult) IsWinner() bool  { return t.NetPnl > 0 }
func (t TradeResult) IsLoser() bool   { return t.NetPnl < 0 }
func (t TradeResult) IsScratch() bool { return math.Abs(t.NetPnl) < ScratchThreshold }

// pnl returns gross, net and return % for a round trip.
func pnl(dir market.Direction, entry, exit float64, qty int, costs Charges) (gross, net, ret float64) {
	q := decimal.NewFromInt(int64(qty))
	g := decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry)).Mul(q)
	if dir == market.Short {
		g = g.Neg()
	}
	n := g.Sub(decimal.NewFromFloat(costs.Total))
	notional := decimal.NewFromFloat(entry).Mul(q).Abs()
	r := decimal.Zero
	if !notional.IsZero() {
		r = n.Div(notional).Mul(decimal.NewFromInt(100))
	}
	return g.InexactFloat64(), n.InexactFloat64(), r.InexactFloat64()
}
