package runtime

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the JSON logger every service writes to stdout.
// LOG_LEVEL selects debug, info, warn or error; anything else means info.
func NewLogger(service string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(os.Getenv("LOG_LEVEL")),
	})
	return slog.New(h).With("service", service)
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
