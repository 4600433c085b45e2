package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/adapters"
	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/journal"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/outbox"
	"github.com/Rajchodisetti/mmfs-scalper/internal/status"
	"github.com/Rajchodisetti/mmfs-scalper/internal/strategy"
)

// wiring carries what differs between a live-clock run and a simulation.
type wiring struct {
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	seed     int64
	simulate bool
	echo     bool
}

type engine struct {
	strategy *strategy.Strategy
	session  market.Session
	outbox   *outbox.Outbox
	journal  journal.Journal
	sink     *observ.AsyncSink
	hub      *status.Hub
	server   *status.Server
}

func buildEngine(ctx context.Context, cfg config.Root, w wiring) (*engine, error) {
	if w.now == nil {
		w.now = time.Now
	}
	sess, err := cfg.MarketSession()
	if err != nil {
		return nil, err
	}

	md, err := marketData(cfg, sess, w)
	if err != nil {
		return nil, err
	}
	breadth, err := breadthFeed(cfg, md, w)
	if err != nil {
		return nil, err
	}

	ob, err := outbox.New(cfg.Paper.OutboxPath)
	if err != nil {
		return nil, err
	}
	ob.SetClock(w.now)
	fills := outbox.NewFillSimulator(cfg.Paper.SlippageBps, func(sym string) float64 {
		if in, ok := cfg.Instrument(sym); ok {
			return in.TickSize
		}
		return market.DefaultTickSize
	})
	broker := adapters.NewPaperBroker(ob, fills).WithClock(w.now)

	j, err := journal.Open(ctx, cfg.Journal, ob)
	if err != nil {
		return nil, err
	}

	hub := status.NewHub(500)
	var next observ.Sink = hub
	if w.echo {
		next = observ.MultiSink{hub, observ.LogSink{}}
	}
	sink := observ.NewAsyncSink(next, 1024)

	s, err := strategy.New(strategy.Deps{
		Config:  cfg,
		Session: sess,
		Data:    md,
		Breadth: breadth,
		Orders:  broker,
		Journal: j,
		Sink:    sink,
		Now:     w.now,
		Sleep:   w.sleep,
	})
	if err != nil {
		sink.Close()
		_ = j.Close()
		return nil, err
	}

	e := &engine{strategy: s, session: sess, outbox: ob, journal: j, sink: sink, hub: hub}
	if cfg.Status.Addr != "" {
		e.server = status.NewServer(cfg.Status.Addr, hub, s.Snapshot)
	}
	observ.SetHealthProbe(e.health)
	return e, nil
}

func marketData(cfg config.Root, sess market.Session, w wiring) (adapters.MarketData, error) {
	var md adapters.MarketData
	switch cfg.MarketData.Adapter {
	case "sim":
		md = adapters.NewSimMarketData(w.seed, sess, w.now)
	default:
		return nil, fmt.Errorf("market data adapter %q is not available from the command line", cfg.MarketData.Adapter)
	}
	if w.simulate {
		return md, nil
	}
	burst := len(cfg.Symbols)
	if cfg.Breadth.Source == "basket" {
		burst += len(cfg.Breadth.Basket)
	}
	return adapters.NewRateLimited(md, cfg.MarketData.RateLimitPerMinute, burst,
		time.Duration(cfg.MarketData.TimeoutMs)*time.Millisecond), nil
}

func breadthFeed(cfg config.Root, md adapters.MarketData, w wiring) (adapters.BreadthFeed, error) {
	b := cfg.Breadth
	var feed adapters.BreadthFeed
	switch b.Source {
	case "sim":
		feed = adapters.NewSimBreadth(b.SimAdvances, b.SimDeclines, b.SimUnchanged, 0.1, w.seed).WithClock(w.now)
	case "basket":
		feed = adapters.NewBasketBreadth(md, b.Basket, b.ChangeThresholdPct)
	case "static":
		feed = adapters.StaticBreadth{Reading: market.BreadthReading{
			Advances: b.SimAdvances, Declines: b.SimDeclines, Unchanged: b.SimUnchanged,
		}}
	default:
		return nil, fmt.Errorf("unknown breadth source %q", b.Source)
	}
	return adapters.NewCachedBreadth(feed, time.Duration(b.CacheSeconds)*time.Second, b.RateLimitPerMinute).WithClock(w.now), nil
}

// health is degraded while a halt is active and failed once the loop has
// stopped.
func (e *engine) health() (string, map[string]any) {
	snap := e.strategy.Snapshot()
	details := map[string]any{"running": e.strategy.Running(), "stream_clients": e.hub.Clients()}
	if snap == nil {
		return "healthy", details
	}
	st := snap.State
	details["phase"] = string(snap.Phase)
	details["open_positions"] = len(snap.Positions)
	details["trades_today"] = st.TradesToday
	details["daily_pnl"] = st.DailyPnl
	switch {
	case !e.strategy.Running():
		return "failed", details
	case st.StopTradingTill945 || st.DailyLossLimitReached || st.MaxTradesReached:
		return "degraded", details
	}
	return "healthy", details
}

func (e *engine) close(ctx context.Context) {
	if e.server != nil {
		if err := e.server.Shutdown(ctx); err != nil {
			observ.Warn("status_server_shutdown", map[string]any{"error": err.Error()})
		}
	}
	e.sink.Close()
	if err := e.journal.Close(); err != nil {
		observ.Error("journal_close_failed", err, nil)
	}
}
