package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger appropriate for the environment.
// Production environments use JSON format, everything else human-readable
// text at debug level.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler
	if IsProduction(env) {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// IsProduction reports whether env names a production-grade environment.
func IsProduction(env string) bool {
	switch strings.ToLower(env) {
	case "production", "staging", "freemium":
		return true
	}
	return false
}
