package main

import (
	"time"

	"github.com/nerrad567/knxnet/internal/eventbus"
	"github.com/nerrad567/knxnet/internal/health"
	"github.com/nerrad567/knxnet/internal/session"
	"github.com/nerrad567/knxnet/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// fanOutEvents returns a goroutine body that drains events once and
// forwards each event to every configured sink, so each sink doesn't
// need its own Subscribe call.
func fanOutEvents(events <-chan session.Event, reporter *health.Reporter, bus *eventbus.Publisher, rec *telemetry.Recorder) func() {
	return func() {
		for ev := range events {
			if reporter != nil {
				reporter.Observe(ev)
			}
			if bus != nil {
				bus.Publish(ev)
			}
			if rec != nil {
				rec.Record(ev)
			}
		}
	}
}
