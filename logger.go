package kvquery

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/kvquery/loader"
)

// Logger wraps slog.Logger with kvquery-specific context.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithQuery adds a query field to the logger.
func (l *Logger) WithQuery(q string) *Logger {
	return &Logger{
		Logger: l.Logger.With("query", q),
	}
}

// LogQuery logs a query evaluation.
func (l *Logger) LogQuery(ctx context.Context, kind Kind, q string, resultSize int, err error) {
	ql := l.WithQuery(q)
	if err != nil {
		ql.WarnContext(ctx, "query failed",
			"kind", kind,
			"error", err,
		)
	} else {
		ql.DebugContext(ctx, "query completed",
			"kind", kind,
			"results", resultSize,
		)
	}
}

// LogLookup logs a key lookup.
func (l *Logger) LogLookup(ctx context.Context, kind Kind, keys, found int, err error) {
	if err != nil {
		l.WarnContext(ctx, "lookup failed",
			"kind", kind,
			"keys", keys,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "lookup completed",
			"kind", kind,
			"keys", keys,
			"found", found,
		)
	}
}

// LogLoad logs a delta file load.
func (l *Logger) LogLoad(ctx context.Context, fr loader.FileResult) {
	if fr.Err != nil {
		l.ErrorContext(ctx, "delta file load failed",
			"file", fr.Name,
			"error", fr.Err,
		)
	} else {
		l.InfoContext(ctx, "delta file loaded",
			"file", fr.Name,
			"records", fr.Records,
			"bytes", fr.Bytes,
			"duration", fr.Duration,
		)
	}
}
