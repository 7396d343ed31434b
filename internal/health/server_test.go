package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/knxnet/internal/config"
	"github.com/nerrad567/knxnet/internal/session"
)

// newTestHandler builds the same router NewServer would, without
// binding a real listener, for use with httptest.
func newTestHandler(reporter *Reporter) http.Handler {
	s := &Server{reporter: reporter}
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	return r
}

func TestHandleHealthOffline(t *testing.T) {
	reporter := NewReporter()
	srv := httptest.NewServer(newTestHandler(reporter))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	var snap Status
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Online {
		t.Error("expected online=false")
	}
}

func TestHandleHealthOnline(t *testing.T) {
	reporter := NewReporter()
	reporter.Observe(session.Event{Type: session.EventOnline})

	srv := httptest.NewServer(newTestHandler(reporter))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestServerCloseUnstarted(t *testing.T) {
	s := NewServer(config.HealthConfig{ListenAddr: ":0"}, NewReporter())

	if err := s.Close(context.Background()); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}
