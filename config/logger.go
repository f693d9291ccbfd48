package config

import (
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger for the given environment. Production logs
// JSON, everything else text. LOG_LEVEL may be: debug, info, warn, error
// (default: info).
func NewLogger(environment string) *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
