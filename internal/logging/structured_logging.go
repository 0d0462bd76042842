// Package logging holds the JSON slog setup shared by the overlay binaries.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// NewStructuredLogger writes JSON records at or above level to w
func NewStructuredLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps LOG_LEVEL style strings to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// OrDefault returns logger, or slog.Default() when logger is nil
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LogError records a failure at error level with err under the "error" key.
// A nil logger drops the record.
func LogError(logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	if err != nil {
		attrs = append([]slog.Attr{slog.String("error", err.Error())}, attrs...)
	}
	logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

// LogOperation records a completed operation at info level. A zero
// "duration" attribute is left out.
func LogOperation(logger *slog.Logger, op string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	kept := attrs[:0:0]
	for _, a := range attrs {
		if a.Key == "duration" && a.Value.Kind() == slog.KindDuration && a.Value.Duration() == 0 {
			continue
		}
		kept = append(kept, a)
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, op, kept...)
}
