// Package logger centralizes logging configuration for the adapter. It
// wraps the standard slog package so every binary configures output the
// same way.
package logger

import (
	"io"
	"log/slog"
)

// Config holds the configuration for the logger.
type Config struct {
	// Level determines the minimum severity level of messages to be logged
	Level slog.Level
	// Output specifies where the logs should be written
	Output io.Writer
	// JSONFormat determines whether logs should be formatted as JSON (true) or text (false)
	JSONFormat bool
}

// NewLogger creates a new slog.Logger with the specified configuration.
func NewLogger(cfg Config) *slog.Logger {
	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{
			Level: cfg.Level,
		})
	} else {
		handler = slog.NewTextHandler(cfg.Output, &slog.HandlerOptions{
			Level: cfg.Level,
		})
	}
	return slog.New(handler)
}

// SetDefault sets the default logger for the application. This affects all
// logging done through the slog package-level functions.
func SetDefault(cfg Config) {
	slog.SetDefault(NewLogger(cfg))
}

// WithComponent returns a logger carrying a component attribute, so a
// binary can tell adapter, webhook and client log lines apart.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
