// Package middleware provides HTTP middleware for the treasury API.
package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength bounds client supplied request IDs copied into spans
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
	// SkipPaths are never traced (health probes).
	SkipPaths []string
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "treasury",
		Enabled:     true,
		SkipPaths:   []string{"/health", "/healthz"},
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns the otelgin middleware. Spans are named
// "METHOD route_pattern" (e.g. "POST /api/v1/treasury/transfers").
// Caller attributes are added by TracingAttributeInjector once the JWT
// middleware has run.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return otelgin.Middleware(cfg.ServiceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return !slices.Contains(cfg.SkipPaths, r.URL.Path)
		}),
	)
}

// TracingAttributeInjector adds request_id, tenant_id and user_id to the
// current span. Place it after both Tracing and the JWT middleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
	}
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := spanRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if tenantID := GetJWTTenantID(c); tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}
	if userID := GetJWTUserID(c); userID != "" {
		span.SetAttributes(attribute.String("user_id", userID))
	}
}

// spanRequestID returns the request ID truncated to MaxRequestIDLength
func spanRequestID(c *gin.Context) string {
	id := GetRequestID(c)
	if len(id) > MaxRequestIDLength {
		return id[:MaxRequestIDLength]
	}
	return id
}

// SpanErrorMarker marks spans with error status for 4xx/5xx responses.
// Place it after the Tracing middleware.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}
		errorMessage := http.StatusText(statusCode)
		if statusCode >= http.StatusInternalServerError {
			errorMessage = "Internal Server Error"
		}
		span.SetStatus(codes.Error, errorMessage)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
