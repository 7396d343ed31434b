package health

import (
	"sync"
	"time"

	"github.com/nerrad567/knxnet/internal/session"
)

// Status is the snapshot a Reporter serves.
type Status struct {
	Online      bool      `json:"online"`
	LastChange  time.Time `json:"last_change"`
	GroupValues uint64    `json:"group_values_total"`
	StartedAt   time.Time `json:"started_at"`
}

// Reporter tracks connection state from a stream of session.Event
// values. Safe for concurrent Observe/Snapshot calls.
type Reporter struct {
	mu    sync.RWMutex
	state Status
}

// NewReporter returns a Reporter with StartedAt set to now.
func NewReporter() *Reporter {
	return &Reporter{state: Status{StartedAt: time.Now()}}
}

// Observe updates state from one event. Intended to be called from a
// goroutine draining Client.Subscribe().
func (r *Reporter) Observe(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case session.EventOnline:
		r.state.Online = true
		r.state.LastChange = time.Now()
	case session.EventOffline:
		r.state.Online = false
		r.state.LastChange = time.Now()
	case session.EventGroupValue:
		r.state.GroupValues++
	}
}

// Snapshot returns the current status.
func (r *Reporter) Snapshot() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}
