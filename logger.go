package rann

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with rann-specific context.
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

// WithMode adds a search mode field to the logger.
func (l *Logger) WithMode(mode Mode) *Logger {
	return &Logger{
		Logger: l.Logger.With("mode", mode.String()),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithQueries adds a query count field to the logger.
func (l *Logger) WithQueries(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("queries", count),
	}
}

// LogBuild logs reference structure construction.
func (l *Logger) LogBuild(ctx context.Context, mode Mode, points, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"mode", mode.String(),
			"points", points,
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "build completed",
			"mode", mode.String(),
			"points", points,
			"dimension", dimension,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, queries int, distanceEvals int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"queries", queries,
			"error", err,
		)
	} else {
		perQuery := int64(0)
		if queries > 0 {
			perQuery = distanceEvals / int64(queries)
		}

		l.DebugContext(ctx, "search completed",
			"k", k,
			"queries", queries,
			"distance_evals", distanceEvals,
			"evals_per_query", perQuery,
		)
	}
}

// LogSnapshot logs a snapshot save operation.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"filename", filename,
		)
	}
}

// LogSnapshotLoad logs a snapshot load operation.
func (l *Logger) LogSnapshotLoad(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot load failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"filename", filename,
		)
	}
}
