package middleware

import (
	"context"
	"slices"

	"github.com/erp/treasury/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// profilingLabelTenant is the tenant label; tenants are few enough to label profiles by
const profilingLabelTenant = "tenant_id"

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether profiling labels are added to requests.
	Enabled bool
	// SkipPaths are paths that don't need profiling labels (e.g., health checks).
	SkipPaths []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/healthz"},
	}
}

// Profiling returns profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig returns middleware that runs the rest of the chain
// under Pyroscope labels for the route pattern, HTTP method and tenant.
// Place it after the JWT middleware so the tenant is known.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		telemetry.WithProfilingLabels(c.Request.Context(), extractProfilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// extractProfilingLabels builds the label set from the matched route
// pattern, never the raw path, to keep cardinality low.
func extractProfilingLabels(c *gin.Context) map[string]string {
	labels := telemetry.HTTPRequestLabels(c.FullPath(), c.Request.Method)
	if tenantID := GetJWTTenantID(c); tenantID != "" {
		labels[profilingLabelTenant] = tenantID
	}
	return labels
}
