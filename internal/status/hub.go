// Package status serves the engine's read-only HTTP surface: health,
// metrics, the latest snapshot and a server-sent event stream.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
)

// StreamEvent is an engine event with its stream position.
type StreamEvent struct {
	ID int64 `json:"id"`
	observ.Event
}

// Hub is an observ.Sink that keeps the last events in a ring and fans them
// out to connected stream clients. Slow clients drop events.
type Hub struct {
	mu      sync.RWMutex
	ring    []StreamEvent
	size    int
	nextID  int64
	clients map[int64]chan StreamEvent
	nextCli int64

	heartbeat time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(size int) *Hub {
	if size <= 0 {
		size = 500
	}
	return &Hub{
		size:      size,
		nextID:    1,
		clients:   make(map[int64]chan StreamEvent),
		heartbeat: 10 * time.Second,
		done:      make(chan struct{}),
	}
}

// Close ends every open stream. Record keeps buffering.
func (h *Hub) Close() { h.closeOnce.Do(func() { close(h.done) }) }

func (h *Hub) Record(e observ.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	se := StreamEvent{ID: h.nextID, Event: e}
	h.nextID++
	h.ring = append(h.ring, se)
	if len(h.ring) > h.size {
		h.ring = h.ring[len(h.ring)-h.size:]
	}
	for id, ch := range h.clients {
		select {
		case ch <- se:
		default:
			observ.IncCounter("status_stream_dropped_total", nil)
			observ.Debug("stream_client_slow", map[string]any{"client": id, "event_id": se.ID})
		}
	}
}

// Since returns up to limit buffered events with an ID above after.
func (h *Hub) Since(after int64, limit int) []StreamEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []StreamEvent
	for _, e := range h.ring {
		if e.ID <= after {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, e)
	}
	return out
}

// Clients is the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe() (int64, chan StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextCli++
	ch := make(chan StreamEvent, 100)
	h.clients[h.nextCli] = ch
	observ.SetGauge("status_stream_clients", float64(len(h.clients)), nil)
	return h.nextCli, ch
}

func (h *Hub) unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
	observ.SetGauge("status_stream_clients", float64(len(h.clients)), nil)
}

// ServeStream streams events as text/event-stream. A Last-Event-ID header
// replays buffered events after that ID before live events.
func (h *Hub) ServeStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var after int64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		after, _ = strconv.ParseInt(v, 10, 64)
	}

	// Subscribe before replaying so nothing recorded in between is lost;
	// the replay cursor filters duplicates.
	id, ch := h.subscribe()
	defer h.unsubscribe(id)
	observ.Debug("stream_client_connected", map[string]any{"client": id, "after": after})

	for _, e := range h.Since(after, 0) {
		if err := writeEvent(w, e); err != nil {
			return
		}
		after = e.ID
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ":ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e := <-ch:
			if e.ID <= after {
				continue
			}
			if err := writeEvent(w, e); err != nil {
				return
			}
			after = e.ID
			flusher.Flush()
		}
	}
}

// ServeBackfill returns buffered events after since_id as JSON.
func (h *Hub) ServeBackfill(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since_id"), 10, 64)
	limit := 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, h.size)
	}
	events := h.Since(since, limit+1)
	more := len(events) > limit
	if more {
		events = events[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":   events,
		"since_id": since,
		"count":    len(events),
		"has_more": more,
	})
}

func writeEvent(w http.ResponseWriter, e StreamEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", e.ID, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", e.Type, e.ID, b)
	return err
}
