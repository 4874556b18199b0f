package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
	"github.com/platformbuilds/mirador-servicehealth/pkg/cache"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

const serviceName = "mirador-servicehealth"

// HealthChecker is satisfied by the metrics backend client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	metrics HealthChecker
	cache   cache.ValkeyCluster // may be nil
	logger  logger.Logger
}

func NewHealthHandler(metrics HealthChecker, c cache.ValkeyCluster, logger logger.Logger) *HealthHandler {
	return &HealthHandler{metrics: metrics, cache: c, logger: logger}
}

// GET /health - liveness
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   monitoring.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - readiness. VictoriaMetrics must answer; the cache only
// degrades readiness because the in-memory fallback keeps the service usable.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]interface{})
	healthy := true

	if err := h.metrics.HealthCheck(ctx); err != nil {
		checks["victoria_metrics"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		healthy = false
	} else {
		checks["victoria_metrics"] = map[string]interface{}{"status": "healthy"}
	}

	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			checks["valkey"] = map[string]interface{}{"status": "degraded", "error": err.Error()}
		} else {
			checks["valkey"] = map[string]interface{}{"status": "healthy"}
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		h.logger.Warn("Readiness check failed", "checks", checks)
	}
	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   monitoring.Version,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
