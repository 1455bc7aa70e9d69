package brec

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/brec/internal/progress"
)

// Logger wraps slog.Logger with brec-specific context.
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

// WithAlgorithm adds an algorithm name field to the logger.
func (l *Logger) WithAlgorithm(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("algorithm", name),
	}
}

// LogTrain logs a training run.
func (l *Logger) LogTrain(ctx context.Context, algorithm string, records int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"algorithm", algorithm,
			"records", records,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "training completed",
			"algorithm", algorithm,
			"records", records,
			"elapsed", elapsed,
		)
	}
}

// LogEnroll logs one enrollment pass.
func (l *Logger) LogEnroll(ctx context.Context, gallery string, enrolled, failures int, bytes int, elapsed time.Duration) {
	l.InfoContext(ctx, "enrollment completed",
		"gallery", gallery,
		"enrolled", enrolled,
		"failures", failures,
		"bytes", bytes,
		"elapsed", elapsed,
	)
}

// LogCompare logs a comparison run.
func (l *Logger) LogCompare(ctx context.Context, output string, comparisons uint64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "comparison failed",
			"output", output,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "comparison completed",
			"output", output,
			"comparisons", comparisons,
			"elapsed", elapsed,
		)
	}
}

// LogStore logs a model save.
func (l *Logger) LogStore(ctx context.Context, model string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "model store failed",
			"model", model,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "model stored",
			"model", model,
		)
	}
}

// LogProgress logs a rate-limited pipeline progress snapshot.
func (l *Logger) LogProgress(op string, st progress.Status) {
	attrs := []any{
		"op", op,
		"current", st.Current,
		"elapsed", st.Elapsed.Round(time.Millisecond),
		"per_second", int64(st.PerSecond()),
	}
	if f := st.Fraction(); f >= 0 {
		attrs = append(attrs, "fraction", f)
	}
	if st.Failures > 0 {
		attrs = append(attrs, "failures", st.Failures)
	}
	l.Info("progress", attrs...)
}

// LogLoad logs a model load.
func (l *Logger) LogLoad(ctx context.Context, model string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "model load failed",
			"model", model,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "model loaded",
			"model", model,
		)
	}
}
