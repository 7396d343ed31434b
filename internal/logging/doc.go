// Package logging provides structured logging for the knxnet client.
//
// It wraps log/slog to provide consistent, structured logging with a
// default field set, matching the Logger interfaces internal/transport
// and internal/session accept.
//
// Usage:
//
//	logger := logging.New(cfg.LogLevel, "stdout")
//	logger.Info("connecting", "remote", cfg.RemoteEndpoint)
package logging
