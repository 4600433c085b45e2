// Package strategy drives the opening-window scalper: it collects pre-market
// data, classifies breadth, evaluates setups, opens positions and manages
// their exits on a single decision loop.
package strategy

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/adapters"
	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/journal"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
	"github.com/Rajchodisetti/mmfs-scalper/internal/risk"
	"github.com/Rajchodisetti/mmfs-scalper/internal/setup"
)

var ErrAlreadyRunning = errors.New("strategy already running")

// Deps are the collaborators of a Strategy. Journal, Sink, Now and Sleep
// are optional.
type Deps struct {
	Config  config.Root
	Session market.Session
	Data    adapters.MarketData
	Breadth adapters.BreadthFeed
	Orders  adapters.OrderPort
	Journal journal.Journal
	Sink    observ.Sink
	Now     func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error
}

// Strategy is the orchestrator. Step and Run must not be called
// concurrently; Snapshot and Stop are safe from any goroutine.
type Strategy struct {
	cfg      config.Root
	sess     market.Session
	limits   risk.Limits
	rules    position.Rules
	costs    position.CostModel
	selector *setup.Selector
	symbols  []string

	data    adapters.MarketData
	breadth adapters.BreadthFeed
	orders  adapters.OrderPort
	journal journal.Journal
	sink    observ.Sink
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	state     *risk.MarketState
	premarket map[string]market.PreMarketData
	candles   map[string]market.FirstCandle
	ranges    map[string]*market.OpeningRange
	positions map[string]*position.Position
	trades    []position.TradeResult
	metrics   *position.Metrics

	premarketCollected bool
	breadthInitialized bool
	candleAttempted    bool
	lastBreadth        time.Time
	phase              market.Phase
	lastBlocked        string

	running  atomic.Bool
	stopping atomic.Bool
	snap     atomic.Pointer[Snapshot]
}

// New wires a strategy. A breadth feed that is not already cached is wrapped
// in a CachedBreadth driven by the strategy clock.
func New(d Deps) (*Strategy, error) {
	if d.Data == nil || d.Breadth == nil || d.Orders == nil {
		return nil, errors.New("strategy needs market data, breadth and order ports")
	}
	if err := d.Session.Validate(); err != nil {
		return nil, err
	}
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	if d.Sink == nil {
		d.Sink = observ.NopSink{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Sleep == nil {
		d.Sleep = sleepContext
	}

	breadth := d.Breadth
	if _, ok := breadth.(*adapters.CachedBreadth); !ok {
		breadth = adapters.NewCachedBreadth(breadth,
			time.Duration(d.Config.Breadth.CacheSeconds)*time.Second,
			d.Config.Breadth.RateLimitPerMinute,
		).WithClock(d.Now)
	}

	s := &Strategy{
		cfg:      d.Config,
		sess:     d.Session,
		limits:   risk.LimitsFrom(d.Config.Strategy),
		rules:    position.RulesFrom(d.Config.Strategy),
		costs:    position.NewCostModel(d.Config.Costs),
		selector: setup.NewSelector(d.Config.Strategy),
		symbols:  d.Config.SymbolNames(),
		data:     d.Data,
		breadth:  breadth,
		orders:   d.Orders,
		journal:  d.Journal,
		sink:     d.Sink,
		now:      d.Now,
		sleep:    d.Sleep,
		metrics:  position.NewMetrics(),
		phase:    market.PhaseIdle,
	}
	s.resetDay(d.Now())
	return s, nil
}

func (s *Strategy) resetDay(now time.Time) {
	if s.state == nil {
		s.state = risk.NewMarketState(now.In(s.sess.Location))
	} else {
		s.state.ResetDaily(now.In(s.sess.Location))
	}
	s.premarket = make(map[string]market.PreMarketData)
	s.candles = make(map[string]market.FirstCandle)
	s.ranges = make(map[string]*market.OpeningRange)
	s.positions = make(map[string]*position.Position)
	s.premarketCollected = false
	s.breadthInitialized = false
	s.candleAttempted = false
	s.lastBreadth = time.Time{}
	s.lastBlocked = ""
}

// Metrics returns the accumulator. It is owned by the decision loop.
func (s *Strategy) Metrics() *position.Metrics { return s.metrics }

// Trades returns the trades closed so far.
func (s *Strategy) Trades() []position.TradeResult {
	return append([]position.TradeResult(nil), s.trades...)
}

func (s *Strategy) emit(typ, symbol string, at time.Time, fields map[string]any) {
	s.sink.Record(observ.Event{Type: typ, Time: at, Symbol: symbol, Fields: fields})
}
