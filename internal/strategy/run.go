package strategy

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
	"github.com/Rajchodisetti/mmfs-scalper/internal/risk"
)

// Run polls Step until the session ends, Stop is called or ctx is done.
// Every exit path, including a panic in the loop, force-closes open
// positions and emits final metrics. A stop or cancellation returns nil.
func (s *Strategy) Run(ctx context.Context) (err error) {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.stopping.Store(false)
	defer s.running.Store(false)

	observ.Log("strategy_started", map[string]any{
		"symbols":        s.symbols,
		"portfolio":      s.cfg.Strategy.PortfolioValue,
		"risk_pct":       s.cfg.Strategy.RiskPerTradePct,
		"max_trades":     s.cfg.Strategy.MaxTradesPerDay,
		"window":         s.sess.MarketOpen.String() + "-" + s.sess.ExecutionEnd.String(),
		"poll_interval":  s.cfg.PollInterval().String(),
		"trading_mode":   s.cfg.TradingMode,
		"breadth_source": s.cfg.Breadth.Source,
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
			observ.Error("strategy_fatal", err, map[string]any{"stack": string(debug.Stack())})
			s.emit("strategy_fatal", "", s.now(), map[string]any{"error": err.Error()})
		}
		s.shutdown(context.WithoutCancel(ctx))
	}()

	interval := s.cfg.PollInterval()
	for !s.stopping.Load() {
		if s.Step(ctx, s.now()) {
			observ.Log("session_complete", map[string]any{"trades": len(s.trades)})
			return nil
		}
		if err := s.sleep(ctx, interval); err != nil {
			observ.Log("strategy_interrupted", map[string]any{"reason": err.Error()})
			return nil
		}
	}
	observ.Log("strategy_stop_requested", nil)
	return nil
}

// Stop asks a running loop to exit at the top of its next iteration.
func (s *Strategy) Stop() { s.stopping.Store(true) }

// Running reports whether Run is active.
func (s *Strategy) Running() bool { return s.running.Load() }

// shutdown closes every open position as STRATEGY_STOP at its last price
// and emits final metrics.
func (s *Strategy) shutdown(ctx context.Context) {
	now := s.now()
	symbols := lo.Keys(s.positions)
	slices.Sort(symbols)
	for _, sym := range symbols {
		pos := s.positions[sym]
		s.exitPosition(ctx, pos, pos.ExitPrice(), position.ExitStrategyStop, now)
	}

	sum := s.metrics.Summary()
	kv := map[string]any{
		"total_trades": sum.TotalTrades,
		"wins":         sum.Wins,
		"losses":       sum.Losses,
		"win_rate":     sum.WinRate,
		"net_pnl":      sum.NetPnl,
		"total_costs":  sum.TotalCosts,
		"expectancy":   sum.Expectancy,
		"trades_today": s.state.TradesToday,
		"daily_pnl":    s.state.DailyPnl,
	}
	if sum.ProfitFactor != nil {
		kv["profit_factor"] = *sum.ProfitFactor
	}
	observ.Log("final_metrics", kv)
	s.emit("final_metrics", "", now, kv)
	s.publish(now, true)
}

// Snapshot is an immutable view published after every iteration.
type Snapshot struct {
	At        time.Time              `json:"at"`
	Phase     market.Phase           `json:"phase"`
	Done      bool                   `json:"done"`
	State     risk.MarketState       `json:"market_state"`
	PreMarket []market.PreMarketData `json:"premarket"`
	Positions []position.Position    `json:"positions"`
	Metrics   position.Summary       `json:"metrics"`
}

func (s *Strategy) publish(now time.Time, done bool) {
	phase := s.sess.Phase(now)
	if done {
		phase = market.PhaseDone
	}
	snap := &Snapshot{
		At:      now,
		Phase:   phase,
		Done:    done,
		State:   *s.state,
		Metrics: s.metrics.Summary(),
	}
	for _, sym := range s.symbols {
		if pm, ok := s.premarket[sym]; ok {
			snap.PreMarket = append(snap.PreMarket, pm)
		}
		if p, ok := s.positions[sym]; ok {
			snap.Positions = append(snap.Positions, *p)
		}
	}
	s.snap.Store(snap)
}

// Snapshot returns the latest published view, or nil before the first
// iteration.
func (s *Strategy) Snapshot() *Snapshot { return s.snap.Load() }

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SimClock is a manual clock whose Sleep advances time instantly.
type SimClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewSimClock(start time.Time) *SimClock { return &SimClock{t: start} }

func (c *SimClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *SimClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *SimClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Sleep advances the clock by d, or fails if ctx is done.
func (c *SimClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}
