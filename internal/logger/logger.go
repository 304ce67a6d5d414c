package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the logging interface used across crucible. It wraps slog so
// commands and services can inject a configured logger (or a test logger)
// without touching a global.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New builds a Logger writing to w. Format is one of "pretty", "json" or
// "text"; unknown formats fall back to text.
func New(w io.Writer, level, format string) Logger {
	lv := ParseLevel(level)
	var h slog.Handler
	switch format {
	case "pretty":
		h = NewPrettyHandler(w, lv)
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})
	}
	return &slogLogger{l: slog.New(h)}
}

// Default returns an info-level text logger on stderr.
func Default() Logger {
	return New(os.Stderr, "info", "text")
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

type ctxKey struct{}

// WithContext returns a context carrying log.
func WithContext(ctx context.Context, log Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the Logger stored in ctx, or a default logger when
// none was attached.
func FromContext(ctx context.Context) Logger {
	if log, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return log
	}
	return Default()
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
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
