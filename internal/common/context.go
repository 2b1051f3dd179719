package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyJobID     contextKey = "job_id"
	ContextKeySubjectID contextKey = "subject_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithJob tags the context with the job being processed.
func WithJob(ctx context.Context, jobID, subjectID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyJobID, jobID)
	return context.WithValue(ctx, ContextKeySubjectID, subjectID)
}

// JobIDFromContext extracts the job ID from context
func JobIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyJobID).(string); ok {
		return id
	}
	return ""
}

// LoggerFrom returns logger enriched with the request and job identifiers found in ctx.
func LoggerFrom(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if id := JobIDFromContext(ctx); id != "" {
		logger = logger.With("job_id", id)
	}
	if id, ok := ctx.Value(ContextKeySubjectID).(string); ok && id != "" {
		logger = logger.With("subject_id", id)
	}
	return logger
}
