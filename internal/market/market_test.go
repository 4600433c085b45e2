package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyGap(t *testing.T) {
	testCases := []struct {
		name      string
		prevClose float64
		open      float64
		wantType  GapType
	}{
		{"flat", 100, 100, GapSmall},
		{"small_boundary", 100, 100.30, GapSmall},
		{"moderate", 21500, 21580, GapModerate},
		{"moderate_boundary_down", 100, 99.20, GapModerate},
		{"strong_up", 100, 101, GapStrong},
		{"strong_down", 100, 98.5, GapStrong},
		{"no_prev_close", 0, 21580, GapNone},
		{"negative_prev_close", -5, 10, GapNone},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := ClassifyGap(tc.prevClose, tc.open, 0.30, 0.80)
			assert.Equal(t, tc.wantType, g.Type)
			if tc.prevClose > 0 {
				assert.Equal(t, (tc.open-tc.prevClose)/tc.prevClose*100, g.GapPct)
			} else {
				assert.Zero(t, g.GapPct)
			}
		})
	}
}

func TestClassifyGapScenarioOne(t *testing.T) {
	g := ClassifyGap(21500, 21580, 0.30, 0.80)
	assert.InDelta(t, 0.372, g.GapPct, 0.001)
	assert.Equal(t, GapModerate, g.Type)
	assert.True(t, g.IsUp())
}

func TestGapBucketsAreMonotonic(t *testing.T) {
	rank := map[GapType]int{GapSmall: 0, GapModerate: 1, GapStrong: 2}
	prev := -1
	for open := 100.0; open <= 102.0; open += 0.01 {
		r := rank[ClassifyGap(100, open, 0.30, 0.80).Type]
		require.GreaterOrEqual(t, r, prev)
		prev = r
	}
}

func TestClassifyBreadth(t *testing.T) {
	testCases := []struct {
		name      string
		adv, dec  int
		wantClass BreadthClass
		wantRatio float64
	}{
		{"bullish_boundary", 150, 100, Bullish, 1.5},
		{"bearish_boundary", 100, 150, Bearish, 100.0 / 150},
		{"neutral", 120, 100, Neutral, 1.2},
		{"zero_declines", 40, 0, Bullish, 40},
		{"zero_advances", 0, 40, Bearish, 1.0 / 40},
		{"both_zero", 0, 0, Neutral, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := ClassifyBreadth(tc.adv, tc.dec, 1.5)
			assert.Equal(t, tc.wantClass, s.Classification)
			assert.InDelta(t, tc.wantRatio, s.ADRatio, 1e-9)
			assert.GreaterOrEqual(t, s.Strength, 0.0)
			assert.LessOrEqual(t, s.Strength, 100.0)
		})
	}
}

func TestStrengthScore(t *testing.T) {
	assert.Equal(t, 50.0, StrengthScore(1))
	assert.Equal(t, 62.5, StrengthScore(1.5))
	assert.Equal(t, 100.0, StrengthScore(3))
	assert.Equal(t, 100.0, StrengthScore(10))
	assert.InDelta(t, 0, StrengthScore(0.33), 1e-9)
	assert.Equal(t, 0.0, StrengthScore(0.1))
}

func TestBreadthSummary(t *testing.T) {
	s := FromReading(BreadthReading{Advances: 100, Declines: 50, Unchanged: 50}, 1.5, 1.5)
	sum := s.Summary()
	assert.Equal(t, 200, sum.Total)
	assert.Equal(t, 50.0, sum.AdvancePct)
	assert.Equal(t, 25.0, sum.DeclinePct)
	assert.Equal(t, 25.0, sum.UnchangedPct)
	assert.Equal(t, Bullish, sum.Classification)

	neutral := FromReading(NeutralReading(time.Time{}), 1.5, 1.5)
	assert.Equal(t, Neutral, neutral.Classification)
	assert.True(t, neutral.Fallback)
}

func TestCandleGeometry(t *testing.T) {
	c := OHLC{Open: 21570, High: 21595, Low: 21565, Close: 21590, VWAP: 21580}
	assert.Equal(t, 30.0, c.Range())
	assert.Equal(t, 5.0, c.UpperWick())
	assert.InDelta(t, 16.67, c.UpperWickPct(), 0.01)
	assert.InDelta(t, 66.67, c.BodyPct(), 0.01)

	flat := OHLC{Open: 10, High: 10, Low: 10, Close: 10}
	assert.Zero(t, flat.UpperWickPct())
	assert.Zero(t, flat.BodyPct())
}

func TestNewFirstCandleVolumeRatio(t *testing.T) {
	c := NewFirstCandle(OHLC{Volume: 2000}, 375000, 375)
	assert.Equal(t, 2.0, c.VolumeRatio)

	unknown := NewFirstCandle(OHLC{Volume: 2000}, 0, 375)
	assert.Equal(t, 1.0, unknown.VolumeRatio)
}

func istAt(t *testing.T, hh, mm, ss int) time.Time {
	t.Helper()
	return time.Date(2026, 3, 2, hh, mm, ss, 0, IST())
}

func TestSessionWindows(t *testing.T) {
	s := DefaultSession()
	require.NoError(t, s.Validate())

	assert.True(t, s.IsPremarket(istAt(t, 9, 0, 0)))
	assert.False(t, s.IsPremarket(istAt(t, 9, 15, 0)))
	assert.True(t, s.IsFirstCandle(istAt(t, 9, 16, 0)))
	assert.False(t, s.IsFirstCandle(istAt(t, 9, 16, 1)))
	assert.True(t, s.IsExecutionWindow(istAt(t, 9, 19, 59)))
	assert.False(t, s.IsExecutionWindow(istAt(t, 9, 20, 0)))
	assert.False(t, s.IsSignalWindow(istAt(t, 9, 15, 59)))
	assert.True(t, s.IsSignalWindow(istAt(t, 9, 16, 0)))
	assert.False(t, s.IsDone(istAt(t, 9, 25, 0)))
	assert.True(t, s.IsDone(istAt(t, 9, 25, 1)))
	assert.Equal(t, 5, s.WindowMinutes())

	// a UTC instant is read in exchange time
	utc := istAt(t, 9, 17, 0).UTC()
	assert.True(t, s.IsSignalWindow(utc))
}

func TestSessionPhaseAndMinute(t *testing.T) {
	s := DefaultSession()
	testCases := []struct {
		at     time.Time
		phase  Phase
		minute int
	}{
		{istAt(t, 8, 59, 0), PhaseIdle, 0},
		{istAt(t, 9, 5, 0), PhasePremarket, 0},
		{istAt(t, 9, 15, 30), PhaseFirstCandle, 0},
		{istAt(t, 9, 16, 0), PhaseSignals, 1},
		{istAt(t, 9, 19, 59), PhaseSignals, 4},
		{istAt(t, 9, 22, 0), PhaseMonitoring, 4},
		{istAt(t, 9, 30, 0), PhaseDone, 4},
	}
	for _, tc := range testCases {
		t.Run(tc.at.Format("15:04:05"), func(t *testing.T) {
			assert.Equal(t, tc.phase, s.Phase(tc.at))
			assert.Equal(t, tc.minute, s.MinuteOfWindow(tc.at))
		})
	}
}

func TestSessionValidateRejectsDisorder(t *testing.T) {
	s := DefaultSession()
	s.ExecutionEnd = ClockTime{9, 15}
	assert.Error(t, s.Validate())
}

func TestTradingDay(t *testing.T) {
	s := DefaultSession()
	assert.True(t, s.IsTradingDay(time.Date(2026, 3, 2, 9, 0, 0, 0, IST())))  // Monday
	assert.False(t, s.IsTradingDay(time.Date(2026, 3, 7, 9, 0, 0, 0, IST()))) // Saturday
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:45")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{9, 45}, c)
	assert.Equal(t, "09:45", c.String())

	_, err = ParseClock("9.45")
	assert.Error(t, err)
}

func TestOpeningRange(t *testing.T) {
	r := NewOpeningRange()
	assert.Zero(t, r.Width())
	assert.Zero(t, r.VolumeSurge())

	r.Update(0, 100, 1000)
	r.Update(0, 102, 1500)
	r.Update(1, 99, 2000)
	r.Update(2, 101, 5000)

	assert.Equal(t, 102.0, r.High)
	assert.Equal(t, 99.0, r.Low)
	assert.Equal(t, 3.0, r.Width())
	assert.Equal(t, []float64{1500, 500, 3000}, r.MinuteVolumes())
	// 3000 / mean(1500, 500)
	assert.InDelta(t, 3.0, r.VolumeSurge(), 1e-9)

	r.Complete = true
	r.Update(3, 200, 9000)
	assert.Equal(t, 102.0, r.High)
}

func TestRoundToTick(t *testing.T) {
	assert.Equal(t, 21640.0, RoundToTick(21640.01, 0.05))
	assert.Equal(t, 100.05, RoundToTick(100.03, 0.05))
	assert.Equal(t, 7.5, RoundToTick(7.5, 0))
	assert.False(t, math.IsNaN(RoundToTick(1, 0.05)))
}

func TestDirectionSides(t *testing.T) {
	assert.Equal(t, Buy, Long.Side())
	assert.Equal(t, Sell, Short.Side())
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, -1.0, Short.Sign())
}
