// Package telemetry records session events as InfluxDB points.
//
// It wraps influxdb-client-go/v2's non-blocking write API, matching the
// pattern internal/infrastructure/influxdb uses elsewhere in this
// codebase: batched writes, async error delivery via a callback, and a
// Flush/Close pair for graceful shutdown.
//
// Usage:
//
//	rec, err := telemetry.Connect(ctx, cfg.Telemetry, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Close()
//	go rec.Run(client.Subscribe())
package telemetry
