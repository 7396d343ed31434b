package eventbus

import "errors"

var (
	// ErrNotConnected is returned when a publish is attempted on a
	// disconnected client.
	ErrNotConnected = errors.New("eventbus: not connected")

	// ErrConnectionFailed is returned when the initial broker connection
	// attempt fails.
	ErrConnectionFailed = errors.New("eventbus: connection failed")

	// ErrDisabled is returned by Connect when the publisher is disabled
	// in configuration.
	ErrDisabled = errors.New("eventbus: disabled in configuration")
)
