package strategy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/mmfs-scalper/internal/adapters"
	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/journal"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/outbox"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
	"github.com/Rajchodisetti/mmfs-scalper/internal/setup"
)

// 2026-03-02 is a Monday.
func at(h, m, s int) time.Time {
	return time.Date(2026, 3, 2, h, m, s, 0, market.IST())
}

var (
	niftyPrevious = market.OHLC{Open: 21450, High: 21700, Low: 21400, Close: 21500, Volume: 375_000, VWAP: 21550}
	// entry 21595, stop 21565, target 21640, confidence 0.70
	niftyCandle = market.OHLC{Open: 21570, High: 21595, Low: 21565, Close: 21590, VWAP: 21580, Volume: 1000}
)

type harness struct {
	t       *testing.T
	s       *Strategy
	md      *adapters.MockMarketData
	breadth *adapters.MockBreadth
	broker  *adapters.PaperBroker
	sink    *observ.MemorySink
	clock   *SimClock
	journal *journal.JSONL
}

func instrument(sym string) market.Instrument {
	return market.Instrument{Symbol: sym, Exchange: "NSE", Segment: "INDEX", TickSize: 0.05, LotSize: 50}
}

func newHarness(t *testing.T, mutate func(*config.Root)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Symbols = []market.Instrument{instrument("NIFTY")}
	if mutate != nil {
		mutate(&cfg)
	}

	md := adapters.NewMockMarketData()
	for _, in := range cfg.Symbols {
		md.SetPrevious(in.Symbol, niftyPrevious)
		md.SetPrice(in.Symbol, 21580)
	}

	ob, err := outbox.New(filepath.Join(t.TempDir(), "outbox.jsonl"))
	require.NoError(t, err)
	clock := NewSimClock(at(9, 0, 0))
	ob.SetClock(clock.Now)
	h := &harness{
		t:       t,
		md:      md,
		breadth: adapters.NewMockBreadth(150, 100, 20),
		broker:  adapters.NewPaperBroker(ob, nil).WithClock(clock.Now),
		sink:    &observ.MemorySink{},
		clock:   clock,
		journal: journal.NewJSONL(ob),
	}
	h.s, err = New(Deps{
		Config:  cfg,
		Session: market.DefaultSession(),
		Data:    md,
		Breadth: h.breadth,
		Orders:  h.broker,
		Journal: h.journal,
		Sink:    h.sink,
		Now:     clock.Now,
		Sleep:   clock.Sleep,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) step(tm time.Time) bool {
	h.clock.Set(tm)
	return h.s.Step(context.Background(), tm)
}

// open runs pre-market, open and the first signal tick.
func (h *harness) open() *position.Position {
	h.t.Helper()
	h.step(at(9, 10, 0))
	h.step(at(9, 15, 0))
	for _, sym := range h.s.symbols {
		h.md.SetCandle(sym, niftyCandle)
	}
	h.step(at(9, 16, 5))
	pos, ok := h.s.positions["NIFTY"]
	require.True(h.t, ok, "expected an open NIFTY position")
	return pos
}

func (h *harness) count(typ string) int {
	return lo.Count(h.sink.Types(), typ)
}

func TestNewRequiresPorts(t *testing.T) {
	_, err := New(Deps{Config: config.Default(), Session: market.DefaultSession()})
	assert.Error(t, err)

	bad := market.DefaultSession()
	bad.ExecutionEnd = bad.MarketOpen
	_, err = New(Deps{
		Config: config.Default(), Session: bad,
		Data: adapters.NewMockMarketData(), Breadth: adapters.NewMockBreadth(1, 1, 0),
		Orders: adapters.NewPaperBroker(nil, nil),
	})
	assert.Error(t, err)
}

func TestTargetExitWithBreakeven(t *testing.T) {
	h := newHarness(t, nil)

	h.step(at(9, 10, 0))
	pm := h.s.premarket["NIFTY"]
	assert.Equal(t, market.GapModerate, pm.Gap.Type)
	assert.InDelta(t, 0.372, pm.Gap.GapPct, 0.001)
	assert.Equal(t, market.PhasePremarket, h.s.Snapshot().Phase)

	h.step(at(9, 15, 0))
	assert.Equal(t, market.Bullish, h.s.state.Breadth.Classification)
	assert.True(t, h.s.state.InExecutionWindow)

	h.md.SetCandle("NIFTY", niftyCandle)
	h.step(at(9, 16, 5))
	pos := h.s.positions["NIFTY"]
	require.NotNil(t, pos)
	assert.Equal(t, setup.GapUpBreakout, pos.Setup)
	assert.Equal(t, 16, pos.Quantity)
	assert.Equal(t, 21595.0, pos.EntryPrice)
	assert.Equal(t, 21565.0, pos.StopLoss)
	assert.InDelta(t, 21640.0, pos.TargetPrice, 1e-9)
	assert.True(t, outbox.IsPaperOrderID(pos.EntryOrderID))
	assert.Len(t, h.broker.OpenOrders("NIFTY"), 2)

	snap := h.s.Snapshot()
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, market.PhaseSignals, snap.Phase)
	assert.Equal(t, 0, pos.Ticks, "not ticked in the opening iteration")

	h.md.SetPrice("NIFTY", 21620)
	h.step(at(9, 17, 0))
	assert.False(t, pos.MovedToBreakeven, "held under two minutes")

	h.md.SetPrice("NIFTY", 21625)
	h.step(at(9, 18, 10))
	assert.True(t, pos.MovedToBreakeven)
	assert.Equal(t, 21595.0, pos.StopLoss)
	stop, err := h.broker.OrderStatus(context.Background(), pos.StopOrderID)
	require.NoError(t, err)
	assert.Equal(t, 21595.0, stop.TriggerPrice)

	h.md.SetPrice("NIFTY", 21640)
	h.step(at(9, 18, 30))
	require.Empty(t, h.s.positions)
	require.Len(t, h.s.Trades(), 1)

	tr := h.s.Trades()[0]
	assert.Equal(t, position.ExitTarget, tr.ExitReason)
	assert.InDelta(t, 720, tr.GrossPnl, 1e-6)
	assert.InDelta(t, 143.438304, tr.Charges.Total, 1e-6)
	assert.InDelta(t, 576.561696, tr.NetPnl, 1e-6)
	assert.Equal(t, 45.0, tr.MaxFavorableExcursion)
	assert.True(t, tr.MovedToBreakeven)

	assert.Equal(t, 1, h.s.state.TradesToday)
	assert.Equal(t, 100.0, h.s.Metrics().WinRate())
	assert.Empty(t, h.broker.OpenOrders("NIFTY"), "protective orders cancelled")

	journaled, err := h.journal.Trades()
	require.NoError(t, err)
	require.Len(t, journaled, 1)
	assert.Equal(t, tr.PositionID, journaled[0].PositionID)

	for _, typ := range []string{"premarket_collected", "breadth_updated", "signal_generated", "position_opened", "breakeven_moved", "position_closed"} {
		assert.Equal(t, 1, h.count(typ), typ)
	}
}

func TestFirstLossHaltsAndResumes(t *testing.T) {
	h := newHarness(t, nil)
	h.open()

	h.md.SetPrice("NIFTY", 21560)
	h.step(at(9, 17, 0))
	require.Len(t, h.s.Trades(), 1)
	tr := h.s.Trades()[0]
	assert.Equal(t, position.ExitStopLoss, tr.ExitReason)
	assert.InDelta(t, -560, tr.GrossPnl, 1e-6)
	assert.True(t, h.s.state.StopTradingTill945)

	ok, reason := h.s.state.CanTakeTrade(h.s.limits)
	assert.False(t, ok)
	assert.Equal(t, "Stopped after first loss (till 9:45)", reason)

	h.md.SetPrice("NIFTY", 21600)
	h.step(at(9, 17, 30))
	assert.Empty(t, h.s.positions, "no re-entry while halted")
	assert.Equal(t, 1, h.count("position_opened"))

	h.step(at(9, 45, 0))
	assert.False(t, h.s.state.StopTradingTill945)
	assert.Equal(t, 1, h.count("trading_resumed"))

	h.step(time.Date(2026, 3, 3, 9, 10, 0, 0, market.IST()))
	assert.Equal(t, "2026-03-03", h.s.state.Date)
	assert.Zero(t, h.s.state.TradesToday)
}

func TestTimeExitWithoutQuotes(t *testing.T) {
	h := newHarness(t, nil)
	pos := h.open()

	h.md.SetError("NIFTY", adapters.NewNetworkError("NIFTY", "feed down", nil))
	h.step(at(9, 20, 0))
	assert.True(t, pos.IsOpen())

	h.step(at(9, 21, 5))
	require.Len(t, h.s.Trades(), 1)
	tr := h.s.Trades()[0]
	assert.Equal(t, position.ExitTime, tr.ExitReason)
	assert.Equal(t, 21595.0, tr.ExitPrice, "no tick seen, exits at entry")
	assert.Zero(t, tr.GrossPnl)
	assert.Less(t, tr.NetPnl, 0.0)
	assert.True(t, h.s.state.FiveMinRangeComplete)
}

func TestLateStartCollectsAndTradesInOneStep(t *testing.T) {
	h := newHarness(t, nil)
	h.md.SetCandle("NIFTY", niftyCandle)

	h.step(at(9, 16, 5))
	require.Contains(t, h.s.positions, "NIFTY")

	ev, ok := lo.Find(h.sink.Events(), func(e observ.Event) bool { return e.Type == "premarket_collected" })
	require.True(t, ok)
	assert.Equal(t, true, ev.Fields["late"])
}

func TestSignalGating(t *testing.T) {
	tests := []struct {
		name         string
		maxPositions int
		portfolio    float64
		wantOpen     []string
		wantSkipped  int
	}{
		{"max one position", 1, 100000, []string{"NIFTY"}, 0},
		{"two positions", 2, 100000, []string{"NIFTY", "FINNIFTY"}, 0},
		{"size rounds to zero", 2, 1000, nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *config.Root) {
				c.Symbols = []market.Instrument{instrument("NIFTY"), instrument("BANKNIFTY"), instrument("FINNIFTY")}
				c.Strategy.MaxPositions = tt.maxPositions
				c.Strategy.PortfolioValue = tt.portfolio
			})
			h.md.SetError("BANKNIFTY", adapters.NewNetworkError("BANKNIFTY", "feed down", nil))
			h.md.SetCandle("NIFTY", niftyCandle)
			h.md.SetCandle("FINNIFTY", niftyCandle)

			h.step(at(9, 16, 5))
			assert.ElementsMatch(t, tt.wantOpen, lo.Keys(h.s.positions))
			assert.NotContains(t, h.s.premarket, "BANKNIFTY")
			assert.Equal(t, 2, h.s.state.SymbolsAnalyzed)
			assert.Equal(t, tt.wantSkipped, h.count("trade_skipped"))
		})
	}
}

func blockedReasons(t *testing.T, logs *bytes.Buffer) []string {
	t.Helper()
	var reasons []string
	sc := bufio.NewScanner(logs)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line["event"] == "trade_blocked" {
			reasons = append(reasons, line["reason"].(string))
		}
	}
	return reasons
}

func TestTradeBlockedLoggedOncePerReason(t *testing.T) {
	var logs bytes.Buffer
	observ.SetOutput(&logs)
	defer observ.SetOutput(os.Stdout)

	h := newHarness(t, nil)
	h.step(at(9, 10, 0))
	h.step(at(9, 15, 0))
	h.md.SetCandle("NIFTY", niftyCandle)

	h.s.state.TradesToday = 2
	h.step(at(9, 16, 5))
	h.step(at(9, 16, 10))

	h.s.state.TradesToday = 0
	h.s.state.DailyLossLimitReached = true
	h.step(at(9, 16, 15))
	h.step(at(9, 16, 20))

	assert.Empty(t, h.s.positions)
	assert.Equal(t, []string{"Max trades reached (2)", "Daily loss limit reached (1.0%)"}, blockedReasons(t, &logs))
}

func TestFirstCandleRetriedUntilAvailable(t *testing.T) {
	h := newHarness(t, nil)
	h.step(at(9, 10, 0))
	h.step(at(9, 15, 0))

	h.step(at(9, 16, 1))
	assert.True(t, h.s.state.FirstCandleComplete)
	assert.Empty(t, h.s.candles)

	h.md.SetCandle("NIFTY", niftyCandle)
	h.step(at(9, 16, 3))
	require.Contains(t, h.s.candles, "NIFTY")
	assert.InDelta(t, 1.0, h.s.candles["NIFTY"].VolumeRatio, 1e-9)
	assert.Contains(t, h.s.positions, "NIFTY")
	assert.Equal(t, 2, h.md.Calls("FirstMinuteCandle"))
}

func TestBreadthRefreshCadenceAndFallback(t *testing.T) {
	h := newHarness(t, nil)
	h.step(at(9, 15, 0))
	h.step(at(9, 15, 30))
	assert.Equal(t, 1, h.breadth.Calls())

	h.breadth.SetError(assert.AnError)
	h.step(at(9, 16, 1))
	assert.Equal(t, 2, h.breadth.Calls())
	assert.True(t, h.s.state.Breadth.Fallback)
	assert.Equal(t, market.Bullish, h.s.state.Breadth.Classification, "last known reading")
}

func TestNeutralBreadthWhenFeedNeverAnswers(t *testing.T) {
	h := newHarness(t, nil)
	h.breadth.SetError(assert.AnError)
	h.md.SetCandle("NIFTY", niftyCandle)

	h.step(at(9, 16, 5))
	b := h.s.state.Breadth
	assert.True(t, b.Fallback)
	assert.Equal(t, market.Neutral, b.Classification)
	assert.Equal(t, 100, b.Advances)
	// a 0.37% gap with neutral breadth matches no setup
	assert.Empty(t, h.s.positions)
}
