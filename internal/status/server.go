package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/strategy"
)

// SnapshotFunc returns the latest strategy snapshot, nil before the first
// iteration.
type SnapshotFunc func() *strategy.Snapshot

type Server struct {
	hub      *Hub
	snapshot SnapshotFunc
	srv      *http.Server
}

func NewServer(addr string, hub *Hub, snapshot SnapshotFunc) *Server {
	s := &Server{hub: hub, snapshot: snapshot}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.srv.RegisterOnShutdown(hub.Close)
	return s
}

// Routes builds the router. It is exported for httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Method(http.MethodGet, "/health", observ.HealthHandler())
	r.Method(http.MethodGet, "/metrics", observ.Handler())
	r.Get("/state", s.serveState)
	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.hub.ServeStream)
		r.Get("/backfill", s.hub.ServeBackfill)
	})
	return r
}

func (s *Server) serveState(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no snapshot yet"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Start listens in the background. The listener is bound before Start
// returns so a bad address fails fast.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	observ.Log("status_server_listening", map[string]any{"addr": ln.Addr().String()})
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observ.Error("status_server_failed", err, nil)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
