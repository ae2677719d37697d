package segpool

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Logger wraps slog.Logger with pool-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger

	// refills happen on the allocation hot path; only a sample is logged.
	refillSampler *rate.Sometimes
}

func newLogger(l *slog.Logger) *Logger {
	return &Logger{
		Logger:        l,
		refillSampler: &rate.Sometimes{First: 16, Interval: time.Second},
	}
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return newLogger(slog.New(handler))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return newLogger(slog.New(handler))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return newLogger(slog.New(handler))
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return newLogger(slog.New(handler))
}

// WithSize adds a size field to the logger.
func (l *Logger) WithSize(size int) *Logger {
	return &Logger{
		Logger:        l.Logger.With("size", size),
		refillSampler: l.refillSampler,
	}
}

// WithClass adds a size-class field to the logger.
func (l *Logger) WithClass(classSize int) *Logger {
	return &Logger{
		Logger:        l.Logger.With("class", classSize),
		refillSampler: l.refillSampler,
	}
}

// WithSource adds the block source name to the logger.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		Logger:        l.Logger.With("source", source),
		refillSampler: l.refillSampler,
	}
}

func (l *Logger) enabled(level slog.Level) bool {
	return l.Logger.Enabled(context.Background(), level)
}

// LogClassesCreated logs the growth of the size-class ladder.
func (l *Logger) LogClassesCreated(count, maxClass int) {
	if count == 0 || !l.enabled(slog.LevelDebug) {
		return
	}
	l.Debug("size classes created",
		"count", count,
		"max_class", maxClass,
	)
}

// LogRefill logs a free-list refill. Refill logs are sampled.
func (l *Logger) LogRefill(classSize, cells int) {
	if !l.enabled(slog.LevelDebug) {
		return
	}
	l.refillSampler.Do(func() {
		l.Debug("free list refilled",
			"class", classSize,
			"cells", cells,
			"block_bytes", classSize*cells,
		)
	})
}

// LogAllocationFailure logs a request the pool could not satisfy.
func (l *Logger) LogAllocationFailure(size int, err error) {
	l.Error("allocation failed",
		"size", size,
		"error", err,
	)
}

// LogContractViolation logs a rejected deallocation.
func (l *Logger) LogContractViolation(size int, addr uintptr, err error) {
	l.Warn("deallocation rejected",
		"size", size,
		"addr", addr,
		"error", err,
	)
}

// LogClose logs pool teardown.
func (l *Logger) LogClose(stats Stats, err error) {
	if err != nil {
		l.Error("pool close failed",
			"blocks", stats.Blocks,
			"error", err,
		)
		return
	}
	l.Info("pool closed",
		"classes", stats.Classes,
		"blocks", stats.Blocks,
		"bytes_reserved", stats.BytesReserved,
		"peak_bytes", stats.PeakBytes,
		"live_cells", stats.LiveCells,
	)
}
