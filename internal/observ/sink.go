package observ

import (
	"maps"
	"sync"
	"time"
)

// Event is a domain event emitted by the strategy engine.
type Event struct {
	Type   string         `json:"type"`
	Time   time.Time      `json:"time"`
	Symbol string         `json:"symbol,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Sink receives events. Record must not block the caller.
type Sink interface {
	Record(Event)
}

type NopSink struct{}

func (NopSink) Record(Event) {}

// LogSink writes every event as a structured log line.
type LogSink struct{}

func (LogSink) Record(e Event) {
	kv := maps.Clone(e.Fields)
	if kv == nil {
		kv = map[string]any{}
	}
	if e.Symbol != "" {
		kv["symbol"] = e.Symbol
	}
	if !e.Time.IsZero() {
		kv["event_time"] = e.Time.Format(time.RFC3339)
	}
	Log(e.Type, kv)
}

// AsyncSink hands events to a single background writer through a bounded
// buffer. Events are dropped when the buffer is full.
type AsyncSink struct {
	next Sink
	ch   chan Event
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncSink(next Sink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AsyncSink{
		next: next,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *AsyncSink) drain() {
	defer close(s.done)
	for e := range s.ch {
		s.next.Record(e)
	}
}

func (s *AsyncSink) Record(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		IncCounter("telemetry_events_dropped_total", map[string]string{"type": e.Type, "reason": "closed"})
		return
	}
	select {
	case s.ch <- e:
	default:
		IncCounter("telemetry_events_dropped_total", map[string]string{"type": e.Type, "reason": "full"})
	}
}

// Close stops accepting events and waits for the buffer to drain.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	<-s.done
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Record(e Event) {
	for _, s := range m {
		s.Record(e)
	}
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Record(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Types lists recorded event types in order.
func (m *MemorySink) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}
