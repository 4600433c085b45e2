package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
)

// BasketBreadth derives advance/decline counts from the change % of a stock
// basket: above +threshold advances, below -threshold declines.
type BasketBreadth struct {
	md          MarketData
	symbols     []string
	threshold   float64
	concurrency int
	now         func() time.Time
}

func NewBasketBreadth(md MarketData, symbols []string, thresholdPct float64) *BasketBreadth {
	return &BasketBreadth{md: md, symbols: symbols, threshold: thresholdPct, concurrency: 5, now: time.Now}
}

func changePct(q market.Quote) (float64, bool) {
	if q.ChangePct != 0 {
		return q.ChangePct, true
	}
	if q.PrevClose > 0 && q.LastPrice > 0 {
		return (q.LastPrice - q.PrevClose) / q.PrevClose * 100, true
	}
	return 0, false
}

func (b *BasketBreadth) AdvanceDecline(ctx context.Context) (market.BreadthReading, error) {
	type result struct {
		change float64
		ok     bool
	}
	results := make([]result, len(b.symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, sym := range b.symbols {
		g.Go(func() error {
			q, err := b.md.CurrentQuote(gctx, sym)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				observ.Debug("basket_quote_failed", map[string]any{"symbol": sym, "error": err.Error()})
				return nil
			}
			c, ok := changePct(q)
			results[i] = result{c, ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return market.BreadthReading{}, NewNetworkError("basket", "basket fetch cancelled", err)
	}

	valid := lo.Filter(results, func(r result, _ int) bool { return r.ok })
	if len(valid) == 0 {
		return market.BreadthReading{}, NewUnavailableError("basket", fmt.Sprintf("no quotes for %d basket symbols", len(b.symbols)), nil)
	}
	adv := lo.CountBy(valid, func(r result) bool { return r.change > b.threshold })
	dec := lo.CountBy(valid, func(r result) bool { return r.change < -b.threshold })
	return market.BreadthReading{
		Advances:  adv,
		Declines:  dec,
		Unchanged: len(valid) - adv - dec,
		Timestamp: b.now(),
		Source:    "basket",
	}, nil
}
