package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/treasury/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// healthTimeout bounds each dependency check of GET /health
const healthTimeout = 2 * time.Second

// Pinger is a dependency whose reachability is reported by GET /health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// PingContext implements Pinger
func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    map[string]Pinger
}

// NewSystemHandler creates a new SystemHandler. Each entry of checks is
// pinged by Health.
func NewSystemHandler(name, version string, checks map[string]Pinger) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		checks:    checks,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping handles GET /system/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	response := PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// HealthResponse reports the state of every dependency
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health. It answers 503 when any dependency is down.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for name, pinger := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		err := pinger.PingContext(ctx)
		cancel()
		if err != nil {
			resp.Checks[name] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "healthy"
	}

	c.JSON(status, resp)
}
