// Package logger provides structured logging using log/slog. It sets up a
// JSON handler with service-level context and propagates a per-request
// trace ID through context.Context.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init creates a structured logger for the given service. Output is JSON on
// stdout with the service name embedded, and the logger becomes the slog
// default.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	l := slog.New(handler).With(
		slog.String("service", service),
	)
	slog.SetDefault(l)
	return l
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// NewTraceID builds a trace ID from the caller subject and a timestamp.
// Lightweight; no UUID dependency.
func NewTraceID(subject string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", subject, ts.UnixNano())
}

// Trace returns slog attributes carrying the trace ID from context.
// Usage: slog.InfoContext(ctx, "msg", logger.Trace(ctx)...)
func Trace(ctx context.Context) []any {
	tid := TraceID(ctx)
	if tid == "" {
		return nil
	}
	return []any{slog.String("trace_id", tid)}
}
