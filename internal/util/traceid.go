package util

import (
	"context"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// NewTraceID generates a correlation identifier for one logical request.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace id to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFrom extracts the trace id from the context, generating one if the
// caller never attached it.
func TraceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok && id != "" {
		return id
	}
	return NewTraceID()
}
