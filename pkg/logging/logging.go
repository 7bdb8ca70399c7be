// Package logging configures structured logging with slog.
//
// Usage:
//
//	logging.Setup("text", "info")  // colored tint output on stderr
//	logging.Setup("json", "debug") // JSON lines on stdout, for log shippers
//
// Level names: debug, info, warn, error (default: info).
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup installs the default slog logger in the given format and level.
func Setup(format, level string) {
	slog.SetDefault(New(format, ParseLevel(level), nil))
}

// New builds a logger without installing it. A nil w selects stderr for
// text and stdout for JSON.
func New(format string, level slog.Level, w io.Writer) *slog.Logger {
	if strings.EqualFold(format, FormatJSON) {
		if w == nil {
			w = os.Stdout
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	if w == nil {
		w = os.Stderr
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
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
