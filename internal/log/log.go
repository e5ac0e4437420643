// Package log provides structured logging for suradas.
// It wraps slog with defaults for development and production use.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	mu     sync.Mutex
)

// Option adjusts how the global logger is built.
type Option func(*options)

type options struct {
	w      io.Writer
	format string
}

// WithWriter sends log output to w instead of stderr.
// The terminal UI and the MCP stdio server need this to keep stdout clean.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.w = w }
}

// WithFormat selects "text" or "json" output.
// Without it, JSON is used when GO_ENV=production.
func WithFormat(format string) Option {
	return func(o *options) { o.format = format }
}

// Init (re)initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string, opts ...Option) *slog.Logger {
	o := options{w: os.Stderr}
	if os.Getenv("GO_ENV") == "production" {
		o.format = "json"
	}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if o.format == "json" {
		h = slog.NewJSONHandler(o.w, handlerOpts)
	} else {
		h = slog.NewTextHandler(o.w, handlerOpts)
	}

	mu.Lock()
	logger = slog.New(h)
	slog.SetDefault(logger)
	mu.Unlock()

	return logger
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// L returns the global logger instance.
func L() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return Init("info")
	}
	return l
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
