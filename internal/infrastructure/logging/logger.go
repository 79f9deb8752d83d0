// Package logging provides structured logging utilities.
//
// Logs are formatted Maven-style with colors when writing to a
// terminal:
//
//	[LEVEL] [SYSTEM] [HH:MM:SS] message key=value
//
// A JSON handler is available for log shipping via LOG_FORMAT=json.
package logging

import (
	"log/slog"
	"os"

	"github.com/ledgermatch/ledgermatch-backend/internal/infrastructure/config"
)

// NewLogger creates a structured logger based on config
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = NewMavenHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// NewLoggerWithSystem creates a logger with a system prefix
// (e.g. "api", "reconcile", "qbo"). Useful for scoped loggers passed
// into collaborating components.
func NewLoggerWithSystem(cfg config.LoggingConfig, system string) *slog.Logger {
	return NewLogger(cfg).With("system", system)
}
