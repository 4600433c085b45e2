package observ

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesEventAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Log("position_opened", map[string]any{"symbol": "NIFTY", "qty": 16})

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "position_opened", line["event"])
	assert.Equal(t, "NIFTY", line["symbol"])
	assert.Equal(t, float64(16), line["qty"])
	assert.Equal(t, "info", line["level"])
	assert.NotEmpty(t, line["ts"])
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	assert.Error(t, SetLevel("loud"))
	assert.NoError(t, SetLevel(""))
}

func TestCountersUseCanonicalLabels(t *testing.T) {
	Reset()
	IncCounter("trades_total", map[string]string{"setup": "GAP_UP_BREAKOUT", "side": "LONG"})
	IncCounter("trades_total", map[string]string{"side": "LONG", "setup": "GAP_UP_BREAKOUT"})
	IncCounterBy("trades_total", nil, 3)

	assert.Equal(t, int64(2), CounterValue("trades_total", map[string]string{"setup": "GAP_UP_BREAKOUT", "side": "LONG"}))
	assert.Equal(t, int64(3), CounterValue("trades_total", nil))

	SetGauge("open_positions", 1, nil)
	v, ok := GaugeValue("open_positions", nil)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestHandlerDumpsRegistry(t *testing.T) {
	Reset()
	IncCounter("signals_total", nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "signals_total"))
}

func TestHealthHandlerMapsStatus(t *testing.T) {
	defer SetHealthProbe(nil)

	testCases := []struct {
		status string
		code   int
	}{
		{"healthy", http.StatusOK},
		{"degraded", http.StatusPartialContent},
		{"failed", http.StatusServiceUnavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			SetHealthProbe(func() (string, map[string]any) { return tc.status, nil })
			rec := httptest.NewRecorder()
			HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (b *blockingSink) Record(e Event) {
	<-b.release
	b.mu.Lock()
	b.got = append(b.got, e)
	b.mu.Unlock()
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	Reset()
	next := &blockingSink{release: make(chan struct{})}
	s := NewAsyncSink(next, 1)

	// The drain goroutine may hold one event while blocked, the buffer a second.
	for range 5 {
		s.Record(Event{Type: "tick"})
	}
	close(next.release)
	s.Close()

	dropped := CounterValue("telemetry_events_dropped_total", map[string]string{"type": "tick", "reason": "full"})
	next.mu.Lock()
	delivered := len(next.got)
	next.mu.Unlock()

	assert.Equal(t, int64(5), dropped+int64(delivered))
	assert.GreaterOrEqual(t, dropped, int64(3))
}

func TestAsyncSinkAfterClose(t *testing.T) {
	Reset()
	mem := &MemorySink{}
	s := NewAsyncSink(mem, 4)
	s.Record(Event{Type: "a"})
	s.Close()
	s.Close()
	s.Record(Event{Type: "b"})

	assert.Equal(t, []string{"a"}, mem.Types())
	assert.Equal(t, int64(1), CounterValue("telemetry_events_dropped_total", map[string]string{"type": "b", "reason": "closed"}))
}

func TestMultiSink(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	MultiSink{a, b, NopSink{}}.Record(Event{Type: "x"})
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}
