package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/knxnet/internal/config"
)

// Server exposes a Reporter's snapshot at GET /health.
type Server struct {
	http     *http.Server
	reporter *Reporter
}

// NewServer builds a Server bound to cfg.ListenAddr.
func NewServer(cfg config.HealthConfig, reporter *Reporter) *Server {
	s := &Server{reporter: reporter}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)

	s.http = &http.Server{Addr: cfg.ListenAddr, Handler: r}
	return s
}

// ListenAndServe blocks serving HTTP until the listener fails or Close
// is called.
func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the HTTP server down gracefully.
func (s *Server) Close(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.reporter.Snapshot()
	status := http.StatusOK
	if !snap.Online {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(snap)
}
