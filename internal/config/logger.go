package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. Prod logs JSON at info, dev logs
// text at debug with source locations. format overrides the handler.
func NewLogger(env, format string) *slog.Logger {
	return newLogger(os.Stdout, env, format)
}

func newLogger(w io.Writer, env, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: env == "dev",
		Level:     slog.LevelDebug,
	}
	if env == "prod" {
		opts.Level = slog.LevelInfo
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "text"
		if env == "prod" {
			format = "json"
		}
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
