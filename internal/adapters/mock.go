package adapters

import (
	"context"
	"sync"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
)

// MockMarketData serves fixed data for tests. Unknown symbols fail with a
// bad-symbol error; a missing first candle yields ErrNoData.
type MockMarketData struct {
	mu       sync.Mutex
	previous map[string]market.OHLC
	quotes   map[string]market.Quote
	candles  map[string]market.OHLC
	errs     map[string]error
	calls    map[string]int
}

func NewMockMarketData() *MockMarketData {
	return &MockMarketData{
		previous: make(map[string]market.OHLC),
		quotes:   make(map[string]market.Quote),
		candles:  make(map[string]market.OHLC),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (m *MockMarketData) SetPrevious(symbol string, c market.OHLC) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previous[symbol] = c
}

// SetPrice sets the quote's last price, keeping the rest of the quote.
func (m *MockMarketData) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.quotes[symbol]
	q.Symbol = symbol
	q.LastPrice = price
	if q.Open == 0 {
		q.Open = price
	}
	if pc := m.previous[symbol].Close; pc > 0 {
		q.PrevClose = pc
		q.ChangePct = (price - pc) / pc * 100
	}
	m.quotes[symbol] = q
}

func (m *MockMarketData) SetQuote(symbol string, q market.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.Symbol = symbol
	m.quotes[symbol] = q
}

func (m *MockMarketData) SetCandle(symbol string, c market.OHLC) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[symbol] = c
}

// SetError makes every call for symbol fail with err; nil clears it.
func (m *MockMarketData) SetError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, symbol)
		return
	}
	m.errs[symbol] = err
}

// Calls returns how many times method was called, e.g. "CurrentQuote".
func (m *MockMarketData) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockMarketData) begin(ctx context.Context, method, symbol string) error {
	m.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.errs[symbol]
}

func (m *MockMarketData) PreviousDayOHLC(ctx context.Context, symbol string) (market.OHLC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "PreviousDayOHLC", symbol); err != nil {
		return market.OHLC{}, err
	}
	c, ok := m.previous[symbol]
	if !ok {
		return market.OHLC{}, NewBadSymbolError(symbol, "symbol not found in mock data")
	}
	return c, nil
}

func (m *MockMarketData) CurrentQuote(ctx context.Context, symbol string) (market.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "CurrentQuote", symbol); err != nil {
		return market.Quote{}, err
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return market.Quote{}, NewBadSymbolError(symbol, "symbol not found in mock data")
	}
	return q, nil
}

func (m *MockMarketData) FirstMinuteCandle(ctx context.Context, symbol string) (market.OHLC, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "FirstMinuteCandle", symbol); err != nil {
		return market.OHLC{}, err
	}
	c, ok := m.candles[symbol]
	if !ok {
		return market.OHLC{}, ErrNoData
	}
	return c, nil
}

// MockBreadth returns a settable reading or error.
type MockBreadth struct {
	mu      sync.Mutex
	reading market.BreadthReading
	err     error
	calls   int
}

func NewMockBreadth(advances, declines, unchanged int) *MockBreadth {
	return &MockBreadth{reading: market.BreadthReading{Advances: advances, Declines: declines, Unchanged: unchanged, Source: "mock"}}
}

func (m *MockBreadth) Set(advances, declines, unchanged int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reading.Advances, m.reading.Declines, m.reading.Unchanged = advances, declines, unchanged
}

func (m *MockBreadth) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockBreadth) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockBreadth) AdvanceDecline(ctx context.Context) (market.BreadthReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return market.BreadthReading{}, NewUnavailableError("breadth", "mock breadth failure", m.err)
	}
	return m.reading, ctx.Err()
}
