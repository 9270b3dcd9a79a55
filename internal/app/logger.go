package app

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// AtomicLogger is a slog.Logger that can be reconfigured at runtime. Level
// changes take effect through a shared LevelVar; format changes swap the
// handler. Get is safe from any goroutine.
type AtomicLogger struct {
	mu     sync.Mutex
	level  slog.LevelVar
	format string
	logger atomic.Pointer[slog.Logger]
}

// NewAtomicLogger creates a logger with the given level and format.
func NewAtomicLogger(level, format string) (*AtomicLogger, error) {
	a := &AtomicLogger{}

	lv, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	a.level.Set(lv)

	if err := a.setFormat(format); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns the current logger.
func (a *AtomicLogger) Get() *slog.Logger {
	return a.logger.Load()
}

// SetLevel changes the log level. Invalid levels are ignored with an error.
func (a *AtomicLogger) SetLevel(level string) error {
	lv, err := parseLevel(level)
	if err != nil {
		return err
	}
	a.level.Set(lv)
	return nil
}

// SetFormat rebuilds the handler with the new output format.
func (a *AtomicLogger) SetFormat(format string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setFormat(format)
}

func (a *AtomicLogger) setFormat(format string) error {
	opts := &slog.HandlerOptions{Level: &a.level}

	var h slog.Handler
	switch format {
	case "json", "":
		h = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}

	a.format = format
	a.logger.Store(slog.New(h))
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}

// slogAdapter adapts the atomic logger to the use-case Logger interfaces.
// It resolves the logger on every call so hot-reloaded settings apply to
// long-lived components too.
type slogAdapter struct {
	source *AtomicLogger
}

func (a *slogAdapter) Debug(msg string, keysAndValues ...any) {
	a.source.Get().Debug(msg, keysAndValues...)
}

func (a *slogAdapter) Info(msg string, keysAndValues ...any) {
	a.source.Get().Info(msg, keysAndValues...)
}

func (a *slogAdapter) Warn(msg string, keysAndValues ...any) {
	a.source.Get().Warn(msg, keysAndValues...)
}

func (a *slogAdapter) Error(msg string, keysAndValues ...any) {
	a.source.Get().Error(msg, keysAndValues...)
}
