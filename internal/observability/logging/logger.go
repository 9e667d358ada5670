// Package logging builds the process-wide structured logger. The api
// and worker binaries both log to stdout tagged with a service
// attribute so their lines can be told apart in an aggregated stream.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns the logger for one binary: human-readable text in
// development, JSON everywhere else. Unknown level strings fall back
// to info.
func New(service, level string, development bool) *slog.Logger {
	return newLogger(os.Stdout, service, level, development)
}

func newLogger(w io.Writer, service, level string, development bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if development {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
