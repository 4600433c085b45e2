package adapters

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
)

// RateLimited wraps a MarketData with a token bucket and a per-call timeout.
type RateLimited struct {
	next    MarketData
	limiter *rate.Limiter
	timeout time.Duration
}

// NewRateLimited allows perMinute calls with the given burst. A zero timeout
// leaves the caller's deadline alone.
func NewRateLimited(next MarketData, perMinute, burst int, timeout time.Duration) *RateLimited {
	lim := rate.Inf
	if perMinute > 0 {
		lim = rate.Limit(float64(perMinute) / 60)
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(lim, max(burst, 1)),
		timeout: timeout,
	}
}

func (r *RateLimited) call(ctx context.Context, method, symbol string, fn func(context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.limiter.Wait(ctx); err != nil {
		observ.IncCounter("market_data_rate_limited_total", map[string]string{"method": method})
		return NewRateLimitError(symbol, "rate limiter wait failed", err)
	}

	start := time.Now()
	err := fn(ctx)
	observ.RecordDuration("market_data_call_ms", time.Since(start), map[string]string{"method": method})
	if err != nil && !errors.Is(err, ErrNoData) {
		observ.IncCounter("market_data_errors_total", map[string]string{"method": method, "kind": string(KindOf(err))})
	}
	if errors.Is(err, context.DeadlineExceeded) && KindOf(err) == "" {
		return NewNetworkError(symbol, "call timed out", err)
	}
	return err
}

func (r *RateLimited) PreviousDayOHLC(ctx context.Context, symbol string) (c market.OHLC, err error) {
	err = r.call(ctx, "previous_day_ohlc", symbol, func(ctx context.Context) error {
		c, err = r.next.PreviousDayOHLC(ctx, symbol)
		return err
	})
	return c, err
}

func (r *RateLimited) CurrentQuote(ctx context.Context, symbol string) (q market.Quote, err error) {
	err = r.call(ctx, "current_quote", symbol, func(ctx context.Context) error {
		q, err = r.next.CurrentQuote(ctx, symbol)
		return err
	})
	return q, err
}

func (r *RateLimited) FirstMinuteCandle(ctx context.Context, symbol string) (c market.OHLC, err error) {
	err = r.call(ctx, "first_minute_candle", symbol, func(ctx context.Context) error {
		c, err = r.next.FirstMinuteCandle(ctx, symbol)
		return err
	})
	return c, err
}
