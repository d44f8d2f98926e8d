package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/dashboard/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Dependency states reported by Health
const (
	DependencyOK       = "ok"
	DependencyDown     = "unavailable"
	DependencyDisabled = "disabled"
)

// healthCheckTimeout bounds each dependency check
const healthCheckTimeout = 2 * time.Second

// Pinger checks a dependency; redis.UniversalClient satisfies it through
// PingFunc
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping implements Pinger
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// ClientCounter reports the number of tracked browsers
type ClientCounter interface {
	Len() int
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	redis     Pinger
	clients   ClientCounter
}

// NewSystemHandler creates a new SystemHandler. redis and clients may be nil.
func NewSystemHandler(name, version string, redis Pinger, clients ClientCounter) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		redis:     redis,
		clients:   clients,
	}
}

// HealthResponse is the liveness report
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health reports liveness. The server stays live without redis because
// token revocation then falls back to memory.
func (h *SystemHandler) Health(c *gin.Context) {
	checks := map[string]string{"redis": DependencyDisabled}
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = DependencyDown
		} else {
			checks["redis"] = DependencyOK
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Clients   int    `json:"clients"`
}

// GetSystemInfo returns version, uptime and the number of tracked clients
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.clients != nil {
		info.Clients = h.clients.Len()
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping is a cheap responsiveness check
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}))
}
