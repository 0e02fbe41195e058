package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID   contextKey = "run_id"
	ContextKeyAttempt contextKey = "attempt"
)

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithAttempt adds the current attempt number to the context
func WithAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, ContextKeyAttempt, n)
}

// AttemptFromContext extracts the attempt number from context (0 if unset)
func AttemptFromContext(ctx context.Context) int {
	if n, ok := ctx.Value(ContextKeyAttempt).(int); ok {
		return n
	}
	return 0
}

// LoggerWith decorates logger with the run and attempt carried by ctx.
func LoggerWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RunIDFromContext(ctx); id != "" {
		logger = logger.With("run_id", id)
	}
	if n := AttemptFromContext(ctx); n > 0 {
		logger = logger.With("attempt", n)
	}
	return logger
}
