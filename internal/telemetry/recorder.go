package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/knxnet/internal/address"
	"github.com/nerrad567/knxnet/internal/config"
	"github.com/nerrad567/knxnet/internal/session"
)

const (
	defaultPingTimeout = 5 * time.Second
	defaultBatchSize   = 50
	defaultFlushMillis = 10000
)

// Logger is the optional logging interface accepted by Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder writes session events to InfluxDB: one point per
// EventGroupValue under the "group_value" measurement, plus
// "connection_state" points for EventOnline/EventOffline.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   Logger

	mu        sync.RWMutex
	connected bool
}

// Connect verifies connectivity and opens a batched, non-blocking write
// API against cfg.Bucket in cfg.Org. Returns ErrDisabled if telemetry is
// not enabled.
func Connect(ctx context.Context, cfg config.TelemetryConfig, logger Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(defaultBatchSize).
			SetFlushInterval(defaultFlushMillis))

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	r := &Recorder{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:    logger,
		connected: true,
	}

	go r.handleWriteErrors(r.writeAPI.Errors())

	return r, nil
}

func (r *Recorder) handleWriteErrors(errs <-chan error) {
	for err := range errs {
		if r.logger != nil {
			r.logger.Warn("telemetry write failed", "error", err)
		}
	}
}

// Run writes a point for every event received until events closes.
func (r *Recorder) Run(events <-chan session.Event) {
	for ev := range events {
		r.Record(ev)
	}
}

// Record writes a single point for ev.
func (r *Recorder) Record(ev session.Event) {
	if !r.IsConnected() {
		return
	}

	switch ev.Type {
	case session.EventOnline, session.EventOffline:
		r.writeAPI.WritePoint(write.NewPoint(
			"connection_state",
			nil,
			map[string]interface{}{"online": ev.Type == session.EventOnline},
			time.Now(),
		))
	case session.EventGroupValue:
		r.writeAPI.WritePoint(write.NewPoint(
			"group_value",
			map[string]string{
				"group_addr": ev.GroupText,
				"src_addr":   address.Format(ev.SrcAddr, address.Physical, false),
				"apci":       ev.APCI.String(),
			},
			map[string]interface{}{"bit_length": ev.BitLength},
			time.Now(),
		))
	}
}

// Flush blocks until all buffered points are written.
func (r *Recorder) Flush() {
	if r.writeAPI != nil {
		r.writeAPI.Flush()
	}
}

// Close flushes pending writes and shuts the client down.
func (r *Recorder) Close() error {
	if r.client == nil {
		return nil
	}
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	r.client.Close()
	return nil
}

// IsConnected reports whether the recorder is still accepting writes.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}
