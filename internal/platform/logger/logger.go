package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New initializes the process-wide slog.Logger.
// level is one of debug, info, warn, error; anything else falls back to info.
func New(level string) *slog.Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter is New with an explicit sink, used by tests to discard output.
func NewWithWriter(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	// JSON output so log aggregation can index campaign_id/recipient/channel fields.
	return slog.New(slog.NewJSONHandler(w, opts))
}
