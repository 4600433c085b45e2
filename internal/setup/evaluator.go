package setup

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
)

// Input is what an evaluator sees for one symbol in one cycle.
type Input struct {
	Symbol     string
	PreMarket  market.PreMarketData
	Candle     market.FirstCandle
	Range      *market.OpeningRange // nil when not tracked
	Breadth    market.BreadthState
	Instrument market.Instrument
	Now        time.Time
	Minute     int // minute of the execution window
}

// Result is the outcome of evaluating a setup. Reason is set when OK is false.
type Result struct {
	Signal Signal
	OK     bool
	Reason string
}

func reject(reason string) Result { return Result{Reason: reason} }

// Evaluator decides whether one setup fires for an input.
type Evaluator interface {
	Type() Type
	// Applies is the gap/breadth precondition; preconditions of different
	// setups do not overlap for a valid configuration.
	Applies(in Input) bool
	Evaluate(in Input) Result
}

// NewEvaluator builds the evaluator for t.
func NewEvaluator(t Type, cfg config.Strategy) Evaluator {
	switch t {
	case GapUpBreakout:
		return gapUpBreakout{cfg}
	case GapUpFailure:
		return gapUpFailure{cfg}
	case GapDownRecovery:
		return gapDownRecovery{cfg}
	case RangeBreakdown:
		return rangeBreakdown{cfg}
	default:
		panic(fmt.Sprintf("setup: no evaluator for %q", string(t)))
	}
}

// MinConfidence returns the configured floor for a setup.
func MinConfidence(t Type, cfg config.Strategy) float64 {
	switch t {
	case GapUpBreakout:
		return cfg.MinConfidenceSetup1
	case GapUpFailure:
		return cfg.MinConfidenceSetup2
	case GapDownRecovery:
		return cfg.MinConfidenceSetup3
	case RangeBreakdown:
		return cfg.MinConfidenceSetup4
	default:
		panic(fmt.Sprintf("setup: no confidence floor for %q", string(t)))
	}
}

// score accumulates confidence in decimal so tier sums compare exactly
// against configured floors.
type score struct{ v decimal.Decimal }

func newScore() score { return score{decimal.NewFromFloat(0.5)} }

func (s *score) add(bonus float64) { s.v = s.v.Add(decimal.NewFromFloat(bonus)) }

// tier adds hi when v > hiAt, else lo when v > loAt.
func (s *score) tier(v, hiAt, hi, loAt, lo float64) {
	switch {
	case v > hiAt:
		s.add(hi)
	case v > loAt:
		s.add(lo)
	}
}

func (s *score) volume(ratio float64) { s.tier(ratio, 2.0, 0.10, 1.5, 0.05) }

func (s score) capped() decimal.Decimal { return decimal.Min(s.v, decimal.NewFromInt(1)) }

// finish applies the confidence floor, the profit-target cap and tick
// rounding, then builds the signal.
func finish(in Input, cfg config.Strategy, t Type, dir market.Direction, entry, stop, target float64, s score) Result {
	conf := s.capped()
	if conf.LessThan(decimal.NewFromFloat(MinConfidence(t, cfg))) {
		return reject(fmt.Sprintf("confidence %.2f below %.2f", conf.InexactFloat64(), MinConfidence(t, cfg)))
	}
	if entry == stop {
		return reject("zero risk")
	}
	if cfg.MaxProfitTargetPct > 0 {
		maxDist := entry * cfg.MaxProfitTargetPct / 100
		if math.Abs(target-entry) > maxDist {
			target = entry + dir.Sign()*maxDist
		}
	}
	target = market.RoundToTick(target, in.Instrument.TickSize)
	if (target-entry)*dir.Sign() <= 0 {
		return reject("target not beyond entry")
	}
	return Result{OK: true, Signal: NewSignal(in, t, dir, entry, stop, target, conf.InexactFloat64())}
}

// gapUpBreakout: long above the first candle after a gap up with bullish
// breadth, the candle closing above VWAP without a large upper wick.
type gapUpBreakout struct{ cfg config.Strategy }

func (gapUpBreakout) Type() Type { return GapUpBreakout }

func (e gapUpBreakout) Applies(in Input) bool {
	return in.PreMarket.Gap.GapPct >= e.cfg.Setup1MinGapPct && in.Breadth.Classification == market.Bullish
}

func (e gapUpBreakout) Evaluate(in Input) Result {
	c := in.Candle
	if e.cfg.Setup1RequireVWAPAbove && c.Close <= c.VWAP {
		return reject("close not above VWAP")
	}
	if c.Range() <= 0 {
		return reject("flat first candle")
	}
	if c.UpperWickPct() > e.cfg.Setup1MaxRejectionWickPct {
		return reject(fmt.Sprintf("upper wick %.1f%% above %.1f%%", c.UpperWickPct(), e.cfg.Setup1MaxRejectionWickPct))
	}

	entry, stop := c.High, c.Low
	target := entry + (entry-stop)*e.cfg.RiskRewardRatio
	// prev high caps the target only while it is still above entry
	if ph := in.PreMarket.PrevHigh; ph > entry {
		target = min(target, ph)
	}

	s := newScore()
	s.tier(in.PreMarket.Gap.GapPct, 0.5, 0.15, 0.3, 0.10)
	s.tier(in.Breadth.Strength, 70, 0.15, 60, 0.10)
	s.volume(c.VolumeRatio)
	return finish(in, e.cfg, GapUpBreakout, market.Long, entry, stop, target, s)
}

// gapUpFailure: short below the first candle when a large gap up meets weak
// breadth and the candle rejects VWAP with a long upper wick.
type gapUpFailure struct{ cfg config.Strategy }

func (gapUpFailure) Type() Type { return GapUpFailure }

func (e gapUpFailure) Applies(in Input) bool {
	b := in.Breadth.Classification
	return in.PreMarket.Gap.GapPct >= e.cfg.Setup2MinGapPct && (b == market.Bearish || b == market.Neutral)
}

func (e gapUpFailure) Evaluate(in Input) Result {
	c := in.Candle
	if c.Range() <= 0 {
		return reject("flat first candle")
	}
	if e.cfg.Setup2RequireVWAPRejection && c.Close >= c.VWAP {
		return reject("close not below VWAP")
	}
	if c.UpperWickPct() < e.cfg.Setup2MinUpperWickPct {
		return reject(fmt.Sprintf("upper wick %.1f%% below %.1f%%", c.UpperWickPct(), e.cfg.Setup2MinUpperWickPct))
	}
	if e.cfg.Setup2RequireVolumeSpike && c.VolumeRatio < e.cfg.MinVolumeRatio {
		return reject(fmt.Sprintf("volume ratio %.2f below %.2f", c.VolumeRatio, e.cfg.MinVolumeRatio))
	}

	entry, stop := c.Low, c.High
	target := entry - (stop-entry)*e.cfg.RiskRewardRatio
	if pc := in.PreMarket.PrevClose; pc > 0 && pc < entry {
		target = max(target, pc) // gap fill
	}

	s := newScore()
	s.tier(in.PreMarket.Gap.GapPct, 0.8, 0.15, 0.5, 0.10)
	s.tier(-in.Breadth.Strength, -30, 0.15, -40, 0.10) // weaker breadth scores higher
	s.volume(c.VolumeRatio)
	return finish(in, e.cfg, GapUpFailure, market.Short, entry, stop, target, s)
}

// gapDownRecovery: long above the first candle when a gap down is met by
// bullish breadth and price reclaims VWAP.
type gapDownRecovery struct{ cfg config.Strategy }

func (gapDownRecovery) Type() Type { return GapDownRecovery }

func (e gapDownRecovery) Applies(in Input) bool {
	return in.PreMarket.Gap.GapPct <= -e.cfg.Setup3MinGapPct && in.Breadth.Classification == market.Bullish
}

func (e gapDownRecovery) Evaluate(in Input) Result {
	c := in.Candle
	if c.Range() <= 0 {
		return reject("flat first candle")
	}
	if e.cfg.Setup3RequireVWAPReclaim && c.Close <= c.VWAP {
		return reject("VWAP not reclaimed")
	}
	if c.UpperWickPct() > e.cfg.Setup1MaxRejectionWickPct {
		return reject(fmt.Sprintf("upper wick %.1f%% above %.1f%%", c.UpperWickPct(), e.cfg.Setup1MaxRejectionWickPct))
	}

	entry, stop := c.High, c.Low
	target := entry + (entry-stop)*e.cfg.RiskRewardRatio
	if pc := in.PreMarket.PrevClose; pc > entry {
		target = min(target, pc) // gap fill
	}

	s := newScore()
	s.tier(math.Abs(in.PreMarket.Gap.GapPct), 0.5, 0.15, 0.3, 0.10)
	s.tier(in.Breadth.Strength, 70, 0.15, 60, 0.10)
	s.volume(c.VolumeRatio)
	return finish(in, e.cfg, GapDownRecovery, market.Long, entry, stop, target, s)
}

// rangeBreakdown: flat open, neutral breadth; trade the side of VWAP the
// first candle closes on, for a fixed scalp target.
type rangeBreakdown struct{ cfg config.Strategy }

func (rangeBreakdown) Type() Type { return RangeBreakdown }

func (e rangeBreakdown) Applies(in Input) bool {
	return math.Abs(in.PreMarket.Gap.GapPct) < e.cfg.Setup4MaxGapPct && in.Breadth.Classification == market.Neutral
}

func (e rangeBreakdown) Evaluate(in Input) Result {
	c := in.Candle
	if c.Range() <= 0 {
		return reject("flat first candle")
	}
	if c.Close == c.VWAP {
		return reject("no side of VWAP")
	}
	volume := c.VolumeRatio
	if in.Range != nil {
		volume = max(volume, in.Range.VolumeSurge())
	}
	if e.cfg.Setup4RequireVolumeBreakout && volume < e.cfg.MinVolumeRatio {
		return reject(fmt.Sprintf("volume ratio %.2f below %.2f", volume, e.cfg.MinVolumeRatio))
	}

	dir, entry, stop := market.Long, c.High, c.Low
	if c.Close < c.VWAP {
		dir, entry, stop = market.Short, c.Low, c.High
	}
	target := entry + dir.Sign()*entry*e.cfg.Setup4ScalpTargetPct/100

	s := newScore()
	s.volume(volume)
	if c.BodyPct() >= 50 {
		s.add(0.10)
	}
	if in.Breadth.Strength >= 45 && in.Breadth.Strength <= 55 {
		s.add(0.05)
	}
	return finish(in, e.cfg, RangeBreakdown, dir, entry, stop, target, s)
}
