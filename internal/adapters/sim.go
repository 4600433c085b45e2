package adapters

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
)

// simBasePrices are indicative levels for the simulated universe.
var simBasePrices = map[string]float64{
	"NIFTY":      21500,
	"BANKNIFTY":  46500,
	"FINNIFTY":   21200,
	"TCS":        3900,
	"INFY":       1650,
	"RELIANCE":   2900,
	"HDFCBANK":   1450,
	"ICICIBANK":  1080,
	"SBIN":       760,
	"HINDUNILVR": 2400,
	"ITC":        430,
	"KOTAKBANK":  1750,
	"LT":         3500,
	"ASIANPAINT": 2850,
	"MARUTI":     11800,
	"BAJFINANCE": 6900,
	"HCLTECH":    1600,
	"WIPRO":      520,
	"AXISBANK":   1120,
	"SUNPHARMA":  1600,
	"TATASTEEL":  150,
	"BHARTIARTL": 1200,
}

type simSymbol struct {
	rng       *rand.Rand
	previous  market.OHLC
	open      float64
	price     float64
	drift     float64
	cumVolume int64
	high, low float64
	candle    *market.OHLC
}

// SimMarketData is a seeded random walk per symbol. The opening gap and the
// intraday drift share a sign so gap setups occur with some regularity. Each
// symbol has its own generator, so results do not depend on call order.
type SimMarketData struct {
	mu      sync.Mutex
	seed    int64
	session market.Session
	now     func() time.Time
	symbols map[string]*simSymbol
}

func NewSimMarketData(seed int64, session market.Session, now func() time.Time) *SimMarketData {
	if now == nil {
		now = time.Now
	}
	return &SimMarketData{seed: seed, session: session, now: now, symbols: make(map[string]*simSymbol)}
}

func (s *SimMarketData) state(symbol string) (*simSymbol, error) {
	symbol = market.NormalizeSymbol(symbol)
	if st, ok := s.symbols[symbol]; ok {
		return st, nil
	}
	base, ok := simBasePrices[symbol]
	if !ok {
		return nil, NewBadSymbolError(symbol, "symbol not supported by sim adapter")
	}
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol)))
	rng := rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))

	prevClose := base * (1 + rng.NormFloat64()*0.004)
	rangePct := 0.006 + rng.Float64()*0.008
	prev := market.OHLC{
		Open:   prevClose * (1 + (rng.Float64()-0.5)*rangePct),
		High:   prevClose * (1 + rangePct*rng.Float64()),
		Low:    prevClose * (1 - rangePct*rng.Float64()),
		Close:  prevClose,
		Volume: int64(2_000_000 + rng.Intn(3_000_000)),
	}
	prev.High = max(prev.High, prev.Open, prev.Close)
	prev.Low = min(prev.Low, prev.Open, prev.Close)
	prev.VWAP = (prev.High + prev.Low + prev.Close) / 3

	gap := math.Max(-0.012, math.Min(0.012, rng.NormFloat64()*0.005))
	open := prevClose * (1 + gap)
	st := &simSymbol{
		rng:      rng,
		previous: roundOHLC(prev),
		open:     tick(open),
		price:    open,
		drift:    math.Copysign(0.00005+rng.Float64()*0.0002, gap),
		high:     open,
		low:      open,
	}
	s.symbols[symbol] = st
	return st, nil
}

func (st *simSymbol) step() {
	st.price *= 1 + st.drift + st.rng.NormFloat64()*0.0004
	st.high = max(st.high, st.price)
	st.low = min(st.low, st.price)
	st.cumVolume += int64(2_000 + st.rng.Intn(8_000))
}

// buildCandle walks the first minute from the open.
func (st *simSymbol) buildCandle() market.OHLC {
	c := market.OHLC{Open: st.open, High: st.open, Low: st.open}
	var pv float64
	startVol := st.cumVolume
	st.price = st.open
	for range 12 {
		before := st.cumVolume
		st.step()
		c.High = max(c.High, st.price)
		c.Low = min(c.Low, st.price)
		pv += st.price * float64(st.cumVolume-before)
	}
	c.Close = st.price
	c.Volume = st.cumVolume - startVol
	if c.Volume > 0 {
		c.VWAP = pv / float64(c.Volume)
	}
	c = roundOHLC(c)
	st.candle = &c
	return c
}

func (s *SimMarketData) PreviousDayOHLC(ctx context.Context, symbol string) (market.OHLC, error) {
	if err := ctx.Err(); err != nil {
		return market.OHLC{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(symbol)
	if err != nil {
		return market.OHLC{}, err
	}
	return st.previous, nil
}

// CurrentQuote returns the pre-open price before the market opens and
// advances the walk by one step after.
func (s *SimMarketData) CurrentQuote(ctx context.Context, symbol string) (market.Quote, error) {
	if err := ctx.Err(); err != nil {
		return market.Quote{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(symbol)
	if err != nil {
		return market.Quote{}, err
	}
	now := s.now()
	if s.session.IsMarketOpen(now) {
		if st.candle == nil && s.session.FirstCandleClosed(now) {
			st.buildCandle()
		}
		st.step()
	}
	last := tick(st.price)
	pc := st.previous.Close
	return market.Quote{
		Symbol:    market.NormalizeSymbol(symbol),
		LastPrice: last,
		Open:      st.open,
		High:      tick(st.high),
		Low:       tick(st.low),
		PrevClose: pc,
		ChangePct: (last - pc) / pc * 100,
		Volume:    st.cumVolume,
		Timestamp: now,
	}, nil
}

func (s *SimMarketData) FirstMinuteCandle(ctx context.Context, symbol string) (market.OHLC, error) {
	if err := ctx.Err(); err != nil {
		return market.OHLC{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.state(symbol)
	if err != nil {
		return market.OHLC{}, err
	}
	if !s.session.FirstCandleClosed(s.now()) {
		return market.OHLC{}, ErrNoData
	}
	if st.candle == nil {
		return st.buildCandle(), nil
	}
	return *st.candle, nil
}

func tick(p float64) float64 { return market.RoundToTick(p, market.DefaultTickSize) }

func roundOHLC(c market.OHLC) market.OHLC {
	c.Open, c.High, c.Low, c.Close, c.VWAP = tick(c.Open), tick(c.High), tick(c.Low), tick(c.Close), tick(c.VWAP)
	return c
}
