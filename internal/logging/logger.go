package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger appropriate for the environment.
// Production uses JSON format, development uses human-readable text.
// Logs go to stderr so command output on stdout stays clean. level is
// passed to New.
func NewLogger(env, level string) *slog.Logger {
	return New(os.Stderr, env, level)
}

// New creates a logger writing to w. level overrides the environment
// default when it names a known level (debug, info, warn, error).
func New(w io.Writer, env, level string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env != "production" {
		opts.Level = slog.LevelDebug
	}

	if l, ok := parseLevel(level); ok {
		opts.Level = l
	}

	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, bool) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return l, false
	}

	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return l, false
	}

	return l, true
}
