package adapters

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
)

// CachedBreadth fronts a BreadthFeed with a freshness window and a fallback
// chain. It never returns an error: a failed fetch serves the last known
// reading marked Fallback, and with no history a neutral 100/100/50 split.
type CachedBreadth struct {
	mu       sync.Mutex
	feed     BreadthFeed
	ttl      time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
	last     market.BreadthReading
	cachedAt time.Time
	have     bool
}

func NewCachedBreadth(feed BreadthFeed, ttl time.Duration, perMinute int) *CachedBreadth {
	lim := rate.Inf
	if perMinute > 0 {
		lim = rate.Limit(float64(perMinute) / 60)
	}
	return &CachedBreadth{feed: feed, ttl: ttl, limiter: rate.NewLimiter(lim, 1), now: time.Now}
}

// WithClock replaces the clock used for cache freshness.
func (c *CachedBreadth) WithClock(now func() time.Time) *CachedBreadth {
	c.now = now
	return c
}

// Invalidate forces the next call to fetch.
func (c *CachedBreadth) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedAt = time.Time{}
}

func (c *CachedBreadth) AdvanceDecline(ctx context.Context) (market.BreadthReading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.have && !c.cachedAt.IsZero() && now.Sub(c.cachedAt) < c.ttl {
		observ.IncCounter("breadth_cache_hit_total", nil)
		return c.last, nil
	}
	if !c.limiter.AllowN(now, 1) {
		return c.fallback(now, "rate_limited", nil), nil
	}

	r, err := c.feed.AdvanceDecline(ctx)
	if err != nil {
		return c.fallback(now, "fetch_failed", err), nil
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	r.Fallback = false
	c.last, c.cachedAt, c.have = r, now, true
	observ.IncCounter("breadth_fetch_total", map[string]string{"source": r.Source})
	return r, nil
}

func (c *CachedBreadth) fallback(now time.Time, reason string, err error) market.BreadthReading {
	observ.IncCounter("breadth_fallback_total", map[string]string{"reason": reason})
	kv := map[string]any{"reason": reason, "have_last": c.have}
	if err != nil {
		kv["error"] = err.Error()
	}
	observ.Warn("breadth_fallback", kv)

	if c.have {
		r := c.last
		r.Fallback = true
		return r
	}
	return market.NeutralReading(now)
}

// SimBreadth returns a configured split with optional seeded jitter.
type SimBreadth struct {
	mu        sync.Mutex
	advances  int
	declines  int
	unchanged int
	jitter    float64 // fraction, e.g. 0.1 for +/-10%
	rng       *rand.Rand
	now       func() time.Time
}

func NewSimBreadth(advances, declines, unchanged int, jitter float64, seed int64) *SimBreadth {
	return &SimBreadth{
		advances:  advances,
		declines:  declines,
		unchanged: unchanged,
		jitter:    jitter,
		rng:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
	}
}

// WithClock replaces the clock used to stamp readings.
func (s *SimBreadth) WithClock(now func() time.Time) *SimBreadth {
	s.now = now
	return s
}

func (s *SimBreadth) Set(advances, declines, unchanged int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advances, s.declines, s.unchanged = advances, declines, unchanged
}

func (s *SimBreadth) jittered(n int) int {
	if s.jitter <= 0 || n == 0 {
		return n
	}
	return max(0, int(float64(n)*(1+(s.rng.Float64()*2-1)*s.jitter)))
}

func (s *SimBreadth) AdvanceDecline(ctx context.Context) (market.BreadthReading, error) {
	if err := ctx.Err(); err != nil {
		return market.BreadthReading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return market.BreadthReading{
		Advances:  s.jittered(s.advances),
		Declines:  s.jittered(s.declines),
		Unchanged: s.unchanged,
		Timestamp: s.now(),
		Source:    "sim",
	}, nil
}

// StaticBreadth always returns the same reading.
type StaticBreadth struct {
	Reading market.BreadthReading
}

func (s StaticBreadth) AdvanceDecline(ctx context.Context) (market.BreadthReading, error) {
	r := s.Reading
	if r.Source == "" {
		r.Source = "static"
	}
	return r, ctx.Err()
}
