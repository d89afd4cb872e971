package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	tenantIDKey  contextKey = "tenant_id"
	userIDKey    contextKey = "user_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithActor stores the tenant and user of the authenticated caller in the
// context so every log line of the request carries them.
func WithActor(ctx context.Context, tenantID, userID string) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, tenantID)
	return context.WithValue(ctx, userIDKey, userID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// GetTenantID retrieves tenant ID from context
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, tenantIDKey)
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, userIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// ContextLogger injects trace_id, span_id, request_id, tenant_id and user_id
// from its context into every entry.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger backed by the logger stored in ctx.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger returns a ContextLogger using the provided logger instead of
// the one stored in ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: logger}
}

func (cl *ContextLogger) enriched() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}

	fields := make([]zap.Field, 0, 5)
	if spanCtx := trace.SpanContextFromContext(cl.ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	for _, key := range []contextKey{requestIDKey, tenantIDKey, userIDKey} {
		if v := stringValue(cl.ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// With creates a child ContextLogger with additional fields.
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	base := cl.logger
	if base == nil {
		base = zap.NewNop()
	}
	return &ContextLogger{ctx: cl.ctx, logger: base.With(fields...)}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.enriched().Debug(msg, fields...)
}

func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.enriched().Info(msg, fields...)
}

func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.enriched().Warn(msg, fields...)
}

func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.enriched().Error(msg, fields...)
}

// Zap returns the underlying zap.Logger enriched with the context fields.
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enriched()
}
