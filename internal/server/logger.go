package server

import (
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger configured for the given environment:
// JSON output at INFO level for "prod", text output at DEBUG level otherwise.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler)
}
