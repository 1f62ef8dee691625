package annkit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with annkit-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithKind adds the index kind to every record.
func (l *Logger) WithKind(kind Kind) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", string(kind)),
	}
}

// LogBuild logs a build or incremental add.
func (l *Logger) LogBuild(ctx context.Context, rows, dim, threads int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"rows", rows,
			"dimension", dim,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"rows", rows,
		"dimension", dim,
		"threads", threads,
		"duration", d,
	)
}

// LogSearch logs a k-nearest-neighbor search.
func (l *Logger) LogSearch(ctx context.Context, queries, k int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"queries", queries,
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"queries", queries,
		"k", k,
		"duration", d,
	)
}

// LogRangeSearch logs a range search.
func (l *Logger) LogRangeSearch(ctx context.Context, queries, results int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "range search failed",
			"queries", queries,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "range search completed",
		"queries", queries,
		"results", results,
		"duration", d,
	)
}

// LogLoad logs a deserialization.
func (l *Logger) LogLoad(ctx context.Context, source string, mapped bool, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"source", source,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index loaded",
		"source", source,
		"mmap", mapped,
		"rows", rows,
	)
}

// LogSave logs a serialization.
func (l *Logger) LogSave(ctx context.Context, target string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"target", target,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index saved",
		"target", target,
	)
}
