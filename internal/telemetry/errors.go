package telemetry

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is disabled in
	// configuration.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed is returned when the initial connection or
	// health ping fails.
	ErrConnectionFailed = errors.New("telemetry: connection failed")
)
