// Package log cria os loggers slog usados pelo gateway.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New cria um logger em stdout. level: debug|info|warn|error (padrão info);
// format: text|json (padrão text).
func New(level, format string) *slog.Logger {
	return NewWriter(os.Stdout, level, format)
}

func NewWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
