package setup

import (
	"fmt"
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
)

// Type identifies one of the opening setups.
type Type string

const (
	GapUpBreakout   Type = "GAP_UP_BREAKOUT"
	GapUpFailure    Type = "GAP_UP_FAILURE"
	GapDownRecovery Type = "GAP_DOWN_RECOVERY"
	RangeBreakdown  Type = "RANGE_BREAKDOWN"
)

// All lists the setups in evaluation order.
var All = []Type{GapUpBreakout, GapUpFailure, GapDownRecovery, RangeBreakdown}

// Label is the short display name.
func (t Type) Label() string {
	switch t {
	case GapUpBreakout:
		return "Setup 1 (Gap-Up Breakout)"
	case GapUpFailure:
		return "Setup 2 (Gap-Up Failure)"
	case GapDownRecovery:
		return "Setup 3 (Gap-Down Recovery)"
	case RangeBreakdown:
		return "Setup 4 (Range Breakdown)"
	default:
		panic(fmt.Sprintf("setup: unknown type %q", string(t)))
	}
}

// Signal is an actionable trade idea. Derived fields are set by NewSignal and
// never recomputed.
type Signal struct {
	Symbol    string           `json:"symbol"`
	Setup     Type             `json:"setup"`
	Direction market.Direction `json:"direction"`

	EntryPrice  float64 `json:"entry_price"`
	StopLoss    float64 `json:"stop_loss"`
	TargetPrice float64 `json:"target_price"`

	RiskAmount      float64 `json:"risk_amount"`
	RewardAmount    float64 `json:"reward_amount"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	Confidence      float64 `json:"confidence"`

	Gap         market.GapInfo      `json:"gap"`
	Breadth     market.BreadthClass `json:"breadth"`
	ADRatio     float64             `json:"ad_ratio"`
	Candle      market.OHLC         `json:"first_candle"`
	VolumeRatio float64             `json:"volume_ratio"`

	Timestamp    time.Time `json:"timestamp"`
	SignalMinute int       `json:"signal_minute"`
}

// NewSignal fills the derived risk/reward fields. The ratio is 0 when there
// is no risk.
func NewSignal(in Input, t Type, dir market.Direction, entry, stop, target, confidence float64) Signal {
	risk := abs(entry - stop)
	reward := abs(target - entry)
	rr := 0.0
	if risk > 0 {
		rr = reward / risk
	}
	return Signal{
		Symbol:          in.Symbol,
		Setup:           t,
		Direction:       dir,
		EntryPrice:      entry,
		StopLoss:        stop,
		TargetPrice:     target,
		RiskAmount:      risk,
		RewardAmount:    reward,
		RiskRewardRatio: rr,
		Confidence:      confidence,
		Gap:             in.PreMarket.Gap,
		Breadth:         in.Breadth.Classification,
		ADRatio:         in.Breadth.ADRatio,
		Candle:          in.Candle.OHLC,
		VolumeRatio:     in.Candle.VolumeRatio,
		Timestamp:       in.Now,
		SignalMinute:    max(0, min(in.Minute, 4)),
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
