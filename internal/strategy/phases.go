package strategy

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Rajchodisetti/mmfs-scalper/internal/adapters"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
	"github.com/Rajchodisetti/mmfs-scalper/internal/setup"
)

const fetchConcurrency = 8

// fanOut calls fn for 0..n-1 with bounded concurrency. Calls only read
// collaborators and write their own slot; a panic is re-raised on the
// caller's goroutine once every call has returned.
func fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var (
		mu       sync.Mutex
		panicked any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := range n {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if panicked == nil {
						panicked = r
					}
					mu.Unlock()
				}
			}()
			fn(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
	if panicked != nil {
		panic(panicked)
	}
}

// Step runs one iteration of the decision loop at now, in phase order:
// resume check, pre-market collection, breadth, first candle, opening range,
// signals, then monitoring. It reports whether the session is over.
func (s *Strategy) Step(ctx context.Context, now time.Time) bool {
	start := time.Now()
	defer func() { observ.RecordDuration("strategy_step_ms", time.Since(start), nil) }()

	if day := now.In(s.sess.Location).Format("2006-01-02"); day != s.state.Date && len(s.positions) == 0 {
		s.resetDay(now)
	}
	s.trackPhase(now)
	s.state.InExecutionWindow = s.sess.IsExecutionWindow(now)
	if s.state.Resume(now, s.sess) {
		s.lastBlocked = ""
		s.emit("trading_resumed", "", now, nil)
	}

	if !s.premarketCollected && (s.sess.IsPremarket(now) || (s.sess.IsMarketOpen(now) && !s.sess.IsDone(now))) {
		s.collectPremarket(ctx, now)
	}
	if s.sess.IsMarketOpen(now) && !s.sess.IsDone(now) {
		if !s.breadthInitialized {
			s.refreshBreadth(ctx, now, true)
		} else if s.state.InExecutionWindow && s.breadthDue(now) {
			s.refreshBreadth(ctx, now, false)
		}
	}
	if s.sess.FirstCandleClosed(now) && s.sess.IsSignalWindow(now) {
		s.fetchCandles(ctx, now)
	}

	quotes := s.fetchQuotes(ctx, s.quoteSymbols())
	if s.state.InExecutionWindow {
		s.trackRange(now, quotes)
	} else if s.sess.IsMarketOpen(now) && !s.state.FiveMinRangeComplete && len(s.ranges) > 0 {
		for _, r := range s.ranges {
			r.Complete = true
		}
		s.state.FiveMinRangeComplete = true
		observ.Log("opening_range_complete", map[string]any{"symbols": len(s.ranges)})
	}

	if s.sess.IsSignalWindow(now) && s.state.FirstCandleComplete {
		s.generateSignals(ctx, now)
	}
	s.monitor(ctx, now, quotes)

	done := s.sess.IsDone(now)
	s.publish(now, done)
	return done
}

func (s *Strategy) trackPhase(now time.Time) {
	p := s.sess.Phase(now)
	if p == s.phase {
		return
	}
	observ.Log("phase_changed", map[string]any{"from": string(s.phase), "to": string(p)})
	s.emit("phase_changed", "", now, map[string]any{"from": string(s.phase), "to": string(p)})
	s.phase = p
}

func (s *Strategy) breadthDue(now time.Time) bool {
	every := time.Duration(s.cfg.Session.BreadthRefreshSecs) * time.Second
	return every > 0 && now.Sub(s.lastBreadth) >= every
}

// collectPremarket fetches previous-day bars and opening quotes in parallel.
// Results are folded in on the calling goroutine.
func (s *Strategy) collectPremarket(ctx context.Context, now time.Time) {
	type result struct {
		pm market.PreMarketData
		ok bool
	}
	missing := lo.Filter(s.symbols, func(sym string, _ int) bool {
		_, have := s.premarket[sym]
		return !have
	})
	results := make([]result, len(missing))

	fanOut(ctx, len(missing), func(ctx context.Context, i int) {
		sym := missing[i]
		prev, err := s.data.PreviousDayOHLC(ctx, sym)
		if err != nil {
			observ.Warn("premarket_fetch_failed", map[string]any{"symbol": sym, "call": "previous_day", "kind": string(adapters.KindOf(err)), "error": err.Error()})
			return
		}
		q, err := s.data.CurrentQuote(ctx, sym)
		if err != nil {
			observ.Warn("premarket_fetch_failed", map[string]any{"symbol": sym, "call": "quote", "kind": string(adapters.KindOf(err)), "error": err.Error()})
			return
		}
		open := q.Open
		if open <= 0 {
			open = q.LastPrice
		}
		results[i] = result{ok: true, pm: market.PreMarketData{
			Symbol:     sym,
			PrevClose:  prev.Close,
			PrevHigh:   prev.High,
			PrevLow:    prev.Low,
			PrevVWAP:   prev.VWAP,
			PrevVolume: prev.Volume,
			TodayOpen:  open,
			Gap:        market.ClassifyGap(prev.Close, open, s.cfg.Strategy.SmallGapPct, s.cfg.Strategy.ModerateGapPct),
		}}
	})

	for _, r := range results {
		if r.ok {
			s.premarket[r.pm.Symbol] = r.pm
			observ.Debug("premarket_symbol", map[string]any{
				"symbol": r.pm.Symbol, "gap_pct": r.pm.Gap.GapPct, "gap_type": string(r.pm.Gap.Type),
			})
		}
	}
	s.state.SymbolsAnalyzed = len(s.premarket)
	if len(s.premarket) == 0 {
		return
	}
	s.premarketCollected = true
	late := s.sess.IsMarketOpen(now)
	observ.Log("premarket_collected", map[string]any{
		"symbols": len(s.premarket), "requested": len(s.symbols), "late": late,
	})
	s.emit("premarket_collected", "", now, map[string]any{"symbols": len(s.premarket), "late": late})
}

// refreshBreadth never fails: the cached feed falls back to the last known
// or a neutral reading.
func (s *Strategy) refreshBreadth(ctx context.Context, now time.Time, initial bool) {
	r, err := s.breadth.AdvanceDecline(ctx)
	if err != nil {
		observ.Warn("breadth_fetch_failed", map[string]any{"error": err.Error()})
		r = market.NeutralReading(now)
	}
	b := market.FromReading(r, s.cfg.Strategy.BreadthBullishRatio, s.cfg.Strategy.BreadthBearishRatio)
	prev := s.state.Breadth.Classification
	s.state.SetBreadth(b)
	s.breadthInitialized = true
	s.lastBreadth = now

	kv := map[string]any{
		"advances": b.Advances, "declines": b.Declines, "ad_ratio": b.ADRatio,
		"classification": string(b.Classification), "strength": b.Strength, "fallback": b.Fallback,
	}
	observ.SetGauge("breadth_ad_ratio", b.ADRatio, nil)
	if initial || prev != b.Classification {
		observ.Log("breadth_updated", kv)
		s.emit("breadth_updated", "", now, kv)
	} else {
		observ.Debug("breadth_refreshed", kv)
	}
}

// fetchCandles retries symbols whose first candle is not yet available.
func (s *Strategy) fetchCandles(ctx context.Context, now time.Time) {
	if !s.candleAttempted {
		s.candleAttempted = true
		s.state.FirstCandleComplete = true
	}
	for _, sym := range s.symbols {
		pm, ok := s.premarket[sym]
		if !ok {
			continue
		}
		if _, have := s.candles[sym]; have {
			continue
		}
		c, err := s.data.FirstMinuteCandle(ctx, sym)
		if errors.Is(err, adapters.ErrNoData) {
			observ.Debug("first_candle_pending", map[string]any{"symbol": sym})
			continue
		}
		if err != nil {
			observ.Warn("first_candle_failed", map[string]any{"symbol": sym, "kind": string(adapters.KindOf(err)), "error": err.Error()})
			continue
		}
		fc := market.NewFirstCandle(c, pm.PrevVolume, s.cfg.Session.SessionMinutes)
		s.candles[sym] = fc
		observ.Log("first_candle", map[string]any{
			"symbol": sym, "open": c.Open, "high": c.High, "low": c.Low, "close": c.Close,
			"vwap": c.VWAP, "volume_ratio": fc.VolumeRatio,
		})
	}
}

// quoteSymbols lists the symbols quoted this tick: every collected symbol
// inside the execution window, otherwise only those with open positions.
func (s *Strategy) quoteSymbols() []string {
	if s.state.InExecutionWindow {
		return lo.Filter(s.symbols, func(sym string, _ int) bool {
			_, ok := s.premarket[sym]
			return ok
		})
	}
	open := lo.Keys(s.positions)
	slices.Sort(open)
	return open
}

// fetchQuotes reads quotes in parallel. Failed symbols are absent from the
// result and are skipped for this tick.
func (s *Strategy) fetchQuotes(ctx context.Context, symbols []string) map[string]market.Quote {
	if len(symbols) == 0 {
		return nil
	}
	quotes := make([]*market.Quote, len(symbols))
	fanOut(ctx, len(symbols), func(ctx context.Context, i int) {
		q, err := s.data.CurrentQuote(ctx, symbols[i])
		if err != nil {
			observ.IncCounter("quote_failures_total", map[string]string{"kind": string(adapters.KindOf(err))})
			observ.Debug("quote_failed", map[string]any{"symbol": symbols[i], "error": err.Error()})
			return
		}
		if q.LastPrice > 0 {
			quotes[i] = &q
		}
	})

	out := make(map[string]market.Quote, len(symbols))
	for i, q := range quotes {
		if q != nil {
			out[symbols[i]] = *q
		}
	}
	return out
}

func (s *Strategy) trackRange(now time.Time, quotes map[string]market.Quote) {
	m := s.sess.MinuteOfWindow(now)
	for sym, q := range quotes {
		r, ok := s.ranges[sym]
		if !ok {
			r = market.NewOpeningRange()
			s.ranges[sym] = r
		}
		r.Update(m, q.LastPrice, q.Volume)
	}
}

// generateSignals evaluates every symbol without an open position. It stops
// at the first risk block, as a block applies to all symbols.
func (s *Strategy) generateSignals(ctx context.Context, now time.Time) {
	minute := s.sess.MinuteOfWindow(now)
	for _, sym := range s.symbols {
		if _, open := s.positions[sym]; open {
			continue
		}
		pm, ok := s.premarket[sym]
		if !ok {
			continue
		}
		candle, ok := s.candles[sym]
		if !ok {
			continue
		}
		if limit := s.cfg.Strategy.MaxPositions; limit > 0 && len(s.positions) >= limit {
			observ.Debug("max_positions_reached", map[string]any{"open": len(s.positions), "max": limit})
			return
		}
		if ok, reason := s.state.CanTakeTrade(s.limits); !ok {
			if reason != s.lastBlocked {
				observ.Log("trade_blocked", map[string]any{"reason": reason})
				s.lastBlocked = reason
			}
			return
		}

		inst, _ := s.cfg.Instrument(sym)
		in := setup.Input{
			Symbol:     sym,
			PreMarket:  pm,
			Candle:     candle,
			Range:      s.ranges[sym],
			Breadth:    s.state.Breadth,
			Instrument: inst,
			Now:        now,
			Minute:     minute,
		}
		res, typ, matched := s.selector.Evaluate(in)
		if !matched {
			continue
		}
		if !res.OK {
			observ.Debug("setup_rejected", map[string]any{"symbol": sym, "setup": string(typ), "reason": res.Reason})
			continue
		}
		sig := res.Signal
		observ.IncCounter("signals_total", map[string]string{"setup": string(sig.Setup)})
		observ.Log("signal_generated", map[string]any{
			"symbol": sym, "setup": string(sig.Setup), "direction": string(sig.Direction),
			"entry": sig.EntryPrice, "stop": sig.StopLoss, "target": sig.TargetPrice,
			"confidence": sig.Confidence, "minute": sig.SignalMinute,
		})
		s.emit("signal_generated", sym, now, map[string]any{
			"setup": string(sig.Setup), "direction": string(sig.Direction), "confidence": sig.Confidence,
		})

		qty := position.Size(s.cfg.Strategy.PortfolioValue, s.cfg.Strategy.RiskPerTradePct, sig.EntryPrice, sig.StopLoss)
		if qty <= 0 {
			observ.Warn("trade_skipped", map[string]any{"symbol": sym, "reason": "position size is zero", "risk": sig.RiskAmount})
			s.emit("trade_skipped", sym, now, map[string]any{"reason": "position size is zero"})
			continue
		}
		s.openPosition(ctx, sig, qty, now)
	}
}
