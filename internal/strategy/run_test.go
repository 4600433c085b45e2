package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/mmfs-scalper/internal/adapters"
	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
)

type panickingData struct{ *adapters.MockMarketData }

func (panickingData) PreviousDayOHLC(context.Context, string) (market.OHLC, error) {
	panic("feed exploded")
}

func TestRunUntilSessionEnd(t *testing.T) {
	h := newHarness(t, func(c *config.Root) { c.Strategy.TimeBasedExit = false })
	h.md.SetCandle("NIFTY", niftyCandle)

	require.NoError(t, h.s.Run(context.Background()))
	assert.False(t, h.s.Running())
	assert.True(t, h.clock.Now().After(at(9, 25, 0)))

	trades := h.s.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, position.ExitStrategyStop, trades[0].ExitReason)
	assert.InDelta(t, -240, trades[0].GrossPnl, 1e-6)

	journaled, err := h.journal.Trades()
	require.NoError(t, err)
	require.Len(t, journaled, 1)
	assert.Equal(t, position.ExitStrategyStop, journaled[0].ExitReason)

	snap := h.s.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.Done)
	assert.Equal(t, market.PhaseDone, snap.Phase)
	assert.Empty(t, snap.Positions)
	assert.Equal(t, 1, snap.Metrics.TotalTrades)
	assert.Equal(t, 1, h.count("final_metrics"))
}

func TestRunCancelledContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.s.Run(ctx))
	assert.Equal(t, 1, h.count("final_metrics"))
	assert.Empty(t, h.s.Trades())
}

func TestRunStopAndReentry(t *testing.T) {
	h := newHarness(t, nil)
	var nested error
	h.s.sleep = func(ctx context.Context, d time.Duration) error {
		assert.True(t, h.s.Running())
		nested = h.s.Run(ctx)
		h.s.Stop()
		return h.clock.Sleep(ctx, d)
	}

	require.NoError(t, h.s.Run(context.Background()))
	assert.ErrorIs(t, nested, ErrAlreadyRunning)
	assert.False(t, h.s.Running())
	assert.Equal(t, at(9, 0, 1), h.clock.Now())
	assert.Equal(t, 1, h.count("final_metrics"))
}

func TestRunRecoversPanic(t *testing.T) {
	h := newHarness(t, nil)
	h.s.data = panickingData{h.md}

	err := h.s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy panic")
	assert.Contains(t, err.Error(), "feed exploded")
	assert.Equal(t, 1, h.count("strategy_fatal"))
	assert.Equal(t, 1, h.count("final_metrics"))
	assert.False(t, h.s.Running())
}

func TestSimClock(t *testing.T) {
	c := NewSimClock(at(9, 0, 0))
	require.NoError(t, c.Sleep(context.Background(), 90*time.Second))
	assert.Equal(t, at(9, 1, 30), c.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Sleep(ctx, time.Minute), context.Canceled)
	assert.Equal(t, at(9, 1, 30), c.Now())
}
