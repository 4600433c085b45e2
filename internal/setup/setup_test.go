package setup

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
)

var nifty = market.Instrument{Symbol: "NIFTY", TickSize: 0.05, LotSize: 50}

func premarket(prevClose, open, prevHigh float64) market.PreMarketData {
	return market.PreMarketData{
		Symbol:    "NIFTY",
		PrevClose: prevClose,
		PrevHigh:  prevHigh,
		TodayOpen: open,
		Gap:       market.ClassifyGap(prevClose, open, 0.30, 0.80),
	}
}

func input(pm market.PreMarketData, c market.OHLC, volumeRatio float64, b market.BreadthState) Input {
	return Input{
		Symbol:     "NIFTY",
		PreMarket:  pm,
		Candle:     market.FirstCandle{OHLC: c, VolumeRatio: volumeRatio},
		Breadth:    b,
		Instrument: nifty,
		Now:        time.Date(2026, 3, 2, 9, 16, 5, 0, market.IST()),
		Minute:     1,
	}
}

func scenarioOneInput() Input {
	return input(
		premarket(21500, 21580, 21700),
		market.OHLC{Open: 21570, High: 21595, Low: 21565, Close: 21590, VWAP: 21580},
		1.0,
		market.ClassifyBreadth(150, 100, 1.5),
	)
}

func TestGapUpBreakoutScenarioOne(t *testing.T) {
	in := scenarioOneInput()
	require.Equal(t, market.GapModerate, in.PreMarket.Gap.Type)
	require.Equal(t, market.Bullish, in.Breadth.Classification)

	res, typ, ok := NewSelector(config.DefaultStrategy()).Evaluate(in)
	require.True(t, ok)
	assert.Equal(t, GapUpBreakout, typ)
	require.True(t, res.OK, res.Reason)

	sig := res.Signal
	assert.Equal(t, market.Long, sig.Direction)
	assert.Equal(t, 21595.0, sig.EntryPrice)
	assert.Equal(t, 21565.0, sig.StopLoss)
	assert.InDelta(t, 21640.0, sig.TargetPrice, 1e-9)
	assert.Equal(t, 30.0, sig.RiskAmount)
	assert.InDelta(t, 45.0, sig.RewardAmount, 1e-9)
	assert.InDelta(t, 1.5, sig.RiskRewardRatio, 1e-9)
	assert.InDelta(t, 0.70, sig.Confidence, 1e-9)
	assert.Equal(t, 1, sig.SignalMinute)
	assert.Equal(t, market.Bullish, sig.Breadth)
}

func TestGapUpBreakoutScenarioTwoVWAPRejection(t *testing.T) {
	in := scenarioOneInput()
	in.Candle.Close = 21570

	res := NewEvaluator(GapUpBreakout, config.DefaultStrategy()).Evaluate(in)
	assert.False(t, res.OK)
	assert.Equal(t, "close not above VWAP", res.Reason)
}

func TestGapUpBreakoutRejections(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Input, *config.Strategy)
		reason string
	}{
		{
			name:   "rejection_wick",
			mutate: func(in *Input, _ *config.Strategy) { in.Candle.High = 21610 },
			reason: "upper wick",
		},
		{
			name: "flat_candle",
			mutate: func(in *Input, cfg *config.Strategy) {
				cfg.Setup1RequireVWAPAbove = false
				in.Candle.OHLC = market.OHLC{Open: 21590, High: 21590, Low: 21590, Close: 21590, VWAP: 21590}
			},
			reason: "flat first candle",
		},
		{
			name:   "low_confidence",
			mutate: func(_ *Input, cfg *config.Strategy) { cfg.MinConfidenceSetup1 = 0.8 },
			reason: "confidence 0.70 below 0.80",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, cfg := scenarioOneInput(), config.DefaultStrategy()
			tc.mutate(&in, &cfg)
			res := NewEvaluator(GapUpBreakout, cfg).Evaluate(in)
			assert.False(t, res.OK)
			assert.Contains(t, res.Reason, tc.reason)
		})
	}
}

func TestGapUpBreakoutConfidenceTiers(t *testing.T) {
	in := scenarioOneInput()
	in.PreMarket = premarket(21400, 21580, 21700) // gap ~0.84%
	in.Breadth = market.ClassifyBreadth(250, 100, 1.5) // strength 87.5
	in.Candle.VolumeRatio = 2.5

	res := NewEvaluator(GapUpBreakout, config.DefaultStrategy()).Evaluate(in)
	require.True(t, res.OK, res.Reason)
	assert.InDelta(t, 0.90, res.Signal.Confidence, 1e-9)
}

func TestTargetCappedAtMaxProfit(t *testing.T) {
	in := scenarioOneInput()
	in.PreMarket.PrevHigh = 0
	cfg := config.DefaultStrategy()
	cfg.RiskRewardRatio = 5

	res := NewEvaluator(GapUpBreakout, cfg).Evaluate(in)
	require.True(t, res.OK, res.Reason)
	assert.InDelta(t, 21595*1.005, res.Signal.TargetPrice, 0.051)
}

func TestPrevHighBelowEntryFallsBackToRRTarget(t *testing.T) {
	in := scenarioOneInput()
	in.PreMarket.PrevHigh = 21550

	res := NewEvaluator(GapUpBreakout, config.DefaultStrategy()).Evaluate(in)
	require.True(t, res.OK, res.Reason)
	assert.InDelta(t, 21640.0, res.Signal.TargetPrice, 1e-9)
}

func gapUpFailureInput() Input {
	return input(
		premarket(20000, 20120, 20150),
		market.OHLC{Open: 20120, High: 20160, Low: 20100, Close: 20110, VWAP: 20125},
		2.5,
		market.ClassifyBreadth(110, 100, 1.5),
	)
}

func TestGapUpFailure(t *testing.T) {
	in := gapUpFailureInput()
	res, typ, ok := NewSelector(config.DefaultStrategy()).Evaluate(in)
	require.True(t, ok)
	assert.Equal(t, GapUpFailure, typ)
	require.True(t, res.OK, res.Reason)

	sig := res.Signal
	assert.Equal(t, market.Short, sig.Direction)
	assert.Equal(t, 20100.0, sig.EntryPrice)
	assert.Equal(t, 20160.0, sig.StopLoss)
	assert.InDelta(t, 20010.0, sig.TargetPrice, 1e-9)
	assert.InDelta(t, 0.70, sig.Confidence, 1e-9)
}

func TestGapUpFailureRejections(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Input)
		reason string
	}{
		{"close_above_vwap", func(in *Input) { in.Candle.Close = 20130 }, "close not below VWAP"},
		{"no_wick", func(in *Input) { in.Candle.High = 20121 }, "upper wick"},
		{"no_volume", func(in *Input) { in.Candle.VolumeRatio = 1.2 }, "volume ratio"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := gapUpFailureInput()
			tc.mutate(&in)
			res := NewEvaluator(GapUpFailure, config.DefaultStrategy()).Evaluate(in)
			assert.False(t, res.OK)
			assert.Contains(t, res.Reason, tc.reason)
		})
	}
}

func TestGapUpFailureGapFillTarget(t *testing.T) {
	in := gapUpFailureInput()
	in.PreMarket = premarket(20050, 20170, 20150) // gap ~0.6%, prev close inside RR target
	res := NewEvaluator(GapUpFailure, config.DefaultStrategy()).Evaluate(in)
	require.True(t, res.OK, res.Reason)
	assert.InDelta(t, 20050.0, res.Signal.TargetPrice, 1e-9)
}

func TestGapDownRecovery(t *testing.T) {
	in := input(
		premarket(20000, 19910, 20100),
		market.OHLC{Open: 19905, High: 19930, Low: 19880, Close: 19925, VWAP: 19910},
		1.0,
		market.ClassifyBreadth(160, 100, 1.5),
	)
	res, typ, ok := NewSelector(config.DefaultStrategy()).Evaluate(in)
	require.True(t, ok)
	assert.Equal(t, GapDownRecovery, typ)
	require.True(t, res.OK, res.Reason)

	sig := res.Signal
	assert.Equal(t, market.Long, sig.Direction)
	assert.Equal(t, 19930.0, sig.EntryPrice)
	assert.Equal(t, 19880.0, sig.StopLoss)
	assert.InDelta(t, 20000.0, sig.TargetPrice, 1e-9) // gap fill beats 1:1.5
	assert.InDelta(t, 0.70, sig.Confidence, 1e-9)

	in.Candle.Close = 19900
	res = NewEvaluator(GapDownRecovery, config.DefaultStrategy()).Evaluate(in)
	assert.False(t, res.OK)
	assert.Equal(t, "VWAP not reclaimed", res.Reason)
}

func rangeInput() Input {
	return input(
		premarket(20000, 20010, 20100),
		market.OHLC{Open: 20030, High: 20040, Low: 20000, Close: 20005, VWAP: 20015},
		1.8,
		market.ClassifyBreadth(100, 100, 1.5),
	)
}

func TestRangeBreakdownShort(t *testing.T) {
	res, typ, ok := NewSelector(config.DefaultStrategy()).Evaluate(rangeInput())
	require.True(t, ok)
	assert.Equal(t, RangeBreakdown, typ)
	require.True(t, res.OK, res.Reason)

	sig := res.Signal
	assert.Equal(t, market.Short, sig.Direction)
	assert.Equal(t, 20000.0, sig.EntryPrice)
	assert.Equal(t, 20040.0, sig.StopLoss)
	assert.InDelta(t, 19950.0, sig.TargetPrice, 1e-9)
	assert.InDelta(t, 0.70, sig.Confidence, 1e-9)
}

func TestRangeBreakdownLongAboveVWAP(t *testing.T) {
	in := rangeInput()
	in.Candle.OHLC = market.OHLC{Open: 19990, High: 20000, Low: 19960, Close: 19995, VWAP: 19980}

	res := NewEvaluator(RangeBreakdown, config.DefaultStrategy()).Evaluate(in)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, market.Long, res.Signal.Direction)
	assert.Equal(t, 20000.0, res.Signal.EntryPrice)
	assert.InDelta(t, 20050.0, res.Signal.TargetPrice, 1e-9)
}

func TestRangeBreakdownVolumeFromOpeningRange(t *testing.T) {
	in := rangeInput()
	in.Candle.VolumeRatio = 1.0

	res := NewEvaluator(RangeBreakdown, config.DefaultStrategy()).Evaluate(in)
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "volume ratio")

	r := market.NewOpeningRange()
	r.Update(0, 20010, 1000)
	r.Update(1, 20005, 4000)
	in.Range = r
	res = NewEvaluator(RangeBreakdown, config.DefaultStrategy()).Evaluate(in)
	assert.True(t, res.OK, res.Reason)
}

func TestNoSetupApplies(t *testing.T) {
	in := scenarioOneInput()
	in.PreMarket = premarket(21500, 21520, 21700) // ~0.09% gap with bullish breadth
	res, _, ok := NewSelector(config.DefaultStrategy()).Evaluate(in)
	assert.False(t, ok)
	assert.False(t, res.OK)
}

func TestPreconditionsAreMutuallyExclusive(t *testing.T) {
	cfg := config.DefaultStrategy()
	breadths := []market.BreadthState{
		market.ClassifyBreadth(200, 100, 1.5),
		market.ClassifyBreadth(100, 100, 1.5),
		market.ClassifyBreadth(100, 200, 1.5),
	}
	for open := 19800.0; open <= 20200; open += 5 {
		for _, b := range breadths {
			in := Input{PreMarket: premarket(20000, open, 0), Breadth: b}
			n := 0
			for _, typ := range All {
				if NewEvaluator(typ, cfg).Applies(in) {
					n++
				}
			}
			require.LessOrEqual(t, n, 1, "open=%v breadth=%s", open, b.Classification)
		}
	}
}

func TestNewSignalZeroRisk(t *testing.T) {
	sig := NewSignal(scenarioOneInput(), GapUpBreakout, market.Long, 100, 100, 101, 0.8)
	assert.Zero(t, sig.RiskRewardRatio)
	assert.False(t, math.IsNaN(sig.RiskRewardRatio))

	in := scenarioOneInput()
	in.Minute = 9
	assert.Equal(t, 4, NewSignal(in, GapUpBreakout, market.Long, 101, 100, 102, 0.8).SignalMinute)
}

func TestUnknownTypePanics(t *testing.T) {
	assert.Panics(t, func() { NewEvaluator(Type("SETUP_5"), config.DefaultStrategy()) })
	assert.Panics(t, func() { _ = Type("SETUP_5").Label() })
	assert.Equal(t, "Setup 1 (Gap-Up Breakout)", GapUpBreakout.Label())
}
