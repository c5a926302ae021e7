package logger

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// NewRequestID returns a fresh request identifier.
func NewRequestID() string {
	return uuid.New().String()
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns "" when the context carries no id.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// InfoCtx and friends add request_id from ctx to the fields.
func InfoCtx(ctx context.Context, msg string, fields map[string]any) {
	writeCtx(ctx, zerolog.InfoLevel, msg, fields)
}

func WarnCtx(ctx context.Context, msg string, fields map[string]any) {
	writeCtx(ctx, zerolog.WarnLevel, msg, fields)
}

func ErrorCtx(ctx context.Context, msg string, fields map[string]any) {
	writeCtx(ctx, zerolog.ErrorLevel, msg, fields)
}

func writeCtx(ctx context.Context, level zerolog.Level, msg string, fields map[string]any) {
	if id := RequestIDFromContext(ctx); id != "" {
		merged := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["request_id"] = id
		fields = merged
	}
	write(level, msg, fields)
}
