package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with the default field set shared by every
// component in this module. Its method set already satisfies the
// Logger interfaces internal/transport and internal/session accept.
type Logger struct {
	*slog.Logger
}

// New creates a Logger at the given level ("debug", "info", "warn",
// "error"), writing JSON lines to output ("stdout" or "stderr").
func New(level, output string) *Logger {
	var w io.Writer
	switch strings.ToLower(output) {
	case "stderr":
		w = os.Stderr
	default:
		w = os.Stdout
	}

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	handler = handler.WithAttrs([]slog.Attr{slog.String("component", "knxnet")})

	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a logger suitable for use before configuration loads:
// info level, JSON, stdout.
func Default() *Logger {
	return New("info", "stdout")
}
