// Package logging provides logging functionality.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Level is a logging level.
type Level = slog.Level

// Attr is a logging attribute.
type Attr = slog.Attr

// Logging levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger is a logging implementation.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new Logger that writes text records of level Info and above to w.
func NewLogger(w io.Writer) *Logger {
	return NewLoggerWithLevel(w, LevelInfo)
}

// NewLoggerWithLevel creates a new Logger that writes text records of the given level and above to w.
func NewLoggerWithLevel(w io.Writer, level Level) *Logger {
	return &Logger{slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))}
}

// ParseLevel parses a level name like "debug" or "WARN".
func ParseLevel(s string) (Level, error) {
	var level Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}

	return level, nil
}

// With returns a Logger that includes the given attributes in every record.
func (l *Logger) With(attrs ...Attr) *Logger {
	return &Logger{l.logger.With(toArgs(attrs)...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(ctx context.Context, msg string, attrs ...Attr) {
	l.logger.DebugContext(ctx, msg, toArgs(attrs)...)
}

// Info logs an info message.
func (l *Logger) Info(ctx context.Context, msg string, attrs ...Attr) {
	l.logger.InfoContext(ctx, msg, toArgs(attrs)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(ctx context.Context, msg string, attrs ...Attr) {
	l.logger.WarnContext(ctx, msg, toArgs(attrs)...)
}

// Error logs an error message.
func (l *Logger) Error(ctx context.Context, msg string, attrs ...Attr) {
	l.logger.ErrorContext(ctx, msg, toArgs(attrs)...)
}

func toArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}

	return args
}

// String creates a new attribute with the given key and value.
func String(key, value string) Attr {
	return slog.String(key, value)
}

// Int creates a new attribute with the given key and int value.
func Int(key string, value int) Attr {
	return slog.Int(key, value)
}

// Any creates a new attribute with the given key and arbitrary value.
func Any(key string, value any) Attr {
	return slog.Any(key, value)
}

// ErrAttr creates a new attribute with the key "err" and the given error value.
func ErrAttr(value error) Attr { return slog.Any("err", value) }
