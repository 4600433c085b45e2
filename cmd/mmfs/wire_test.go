package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/mmfs-scalper/internal/adapters"
	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/outbox"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
	"github.com/Rajchodisetti/mmfs-scalper/internal/strategy"
)

func simConfig(t *testing.T) config.Root {
	t.Helper()
	c := config.Default()
	c.Paper.OutboxPath = filepath.Join(t.TempDir(), "outbox.jsonl")
	c.Journal.Path = c.Paper.OutboxPath
	return c
}

func TestSimulatedSessionRunsToCompletion(t *testing.T) {
	c := simConfig(t)
	sess, err := c.MarketSession()
	require.NoError(t, err)
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, sess.Location)
	clock := strategy.NewSimClock(day)

	e, err := buildEngine(context.Background(), c, wiring{now: clock.Now, sleep: clock.Sleep, seed: 7, simulate: true})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runEngine(context.Background(), &out, e))

	snap := e.strategy.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.Done)
	assert.Empty(t, snap.Positions, "everything closed by shutdown")
	assert.Contains(t, out.String(), "SYMBOL")
	assert.Contains(t, out.String(), "trades ")

	trades, err := outbox.Decode[position.TradeResult](e.outbox, outbox.KindTrade)
	require.NoError(t, err)
	assert.Len(t, trades, len(e.strategy.Trades()))

	status, details := e.health()
	assert.Equal(t, "failed", status, "loop has stopped")
	assert.Equal(t, false, details["running"])
}

func TestBreadthFeedSources(t *testing.T) {
	tests := []struct {
		source  string
		wantErr bool
	}{
		{"sim", false},
		{"basket", false},
		{"static", false},
		{"nse", true},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			c := simConfig(t)
			c.Breadth.Source = tt.source
			feed, err := breadthFeed(c, adapters.NewMockMarketData(), wiring{now: time.Now, seed: 1})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &adapters.CachedBreadth{}, feed)
		})
	}
}

func TestMarketDataAdapters(t *testing.T) {
	c := simConfig(t)
	sess := market.DefaultSession()

	md, err := marketData(c, sess, wiring{simulate: true})
	require.NoError(t, err)
	assert.IsType(t, &adapters.SimMarketData{}, md)

	md, err = marketData(c, sess, wiring{})
	require.NoError(t, err)
	assert.IsType(t, &adapters.RateLimited{}, md)

	c.MarketData.Adapter = "mock"
	_, err = marketData(c, sess, wiring{})
	assert.Error(t, err)
}

func TestCheckConfig(t *testing.T) {
	var out bytes.Buffer
	_, err := checkConfig(&out, config.Default())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Profile:")

	bad := config.Default()
	bad.Strategy.PortfolioValue = 0
	out.Reset()
	v, err := checkConfig(&out, bad)
	require.Error(t, err)
	assert.False(t, v.Valid)
	assert.Contains(t, out.String(), "ERROR")
}
