package reflex8

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with engine-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCycle adds a cycle field to the logger.
func (l *Logger) WithCycle(cycle uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("cycle", cycle),
	}
}

// WithShard adds a shard field to the logger.
func (l *Logger) WithShard(shard uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shard),
	}
}

// WithHook adds a hook field to the logger.
func (l *Logger) WithHook(hook uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("hook", hook),
	}
}

// LogBeat logs one beat of the scheduler.
func (l *Logger) LogBeat(ctx context.Context, cycle, tick uint64, consumed int) {
	l.DebugContext(ctx, "beat completed",
		"cycle", cycle,
		"tick", tick,
		"consumed", consumed,
	)
}

// LogPulse logs a pulse boundary commit.
func (l *Logger) LogPulse(ctx context.Context, cycle uint64, receipts int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "pulse commit failed",
			"cycle", cycle,
			"receipts", receipts,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "pulse committed",
			"cycle", cycle,
			"receipts", receipts,
			"duration", duration,
		)
	}
}

// LogPark logs work deferred to the warm tier.
func (l *Logger) LogPark(ctx context.Context, hook uint32, lanes int) {
	l.DebugContext(ctx, "work parked",
		"hook", hook,
		"lanes", lanes,
	)
}

// LogArchive logs a segment archive operation.
func (l *Logger) LogArchive(ctx context.Context, segment string, receipts int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive failed",
			"segment", segment,
			"receipts", receipts,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "segment archived",
			"segment", segment,
			"receipts", receipts,
		)
	}
}
