// Package logging builds the process logger and the per-subsystem child
// loggers derived from it. Every subsystem logs through Component so its
// lines carry a stable "component" attribute.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup creates the root logger, sets it as the default, and returns it.
// Level accepts "debug", "info", "warn", "error" (case-insensitive),
// defaulting to info; format accepts "json" or "text", defaulting to text.
func Setup(level, format string) *slog.Logger {
	logger := slog.New(newHandler(os.Stderr, level, format))
	slog.SetDefault(logger)
	return logger
}

// Component derives a child logger tagged with the subsystem name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
