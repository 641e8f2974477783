// Package logging configures the process-wide structured logger from
// config.LoggingConfig, mirroring the pack's pkg/logger.Setup shape: a
// level and an output format (text or json), installed as slog's default
// logger for every package in the tree to log through.
package logging

import (
	"log/slog"
	"os"
)

// Setup installs a slog.Logger as the process default, writing to stdout in
// the given format at the given level.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithComponent returns a logger tagging every record with a component
// name, for distinguishing engine/lease/metrics log lines in a single
// process's output.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
