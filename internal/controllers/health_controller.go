package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/middleware"

	"github.com/gin-gonic/gin"
)

// HealthChecker is satisfied by every persistence plugin.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type healthController struct {
	sink    HealthChecker
	timeout time.Duration
}

func NewHealthController(sink HealthChecker) *healthController {
	return &healthController{sink: sink, timeout: 2 * time.Second}
}

// Live answers the plain liveness check.
func (h *healthController) Live(c *gin.Context) {
	c.String(http.StatusOK, "Server is Live")
}

// Ready reports whether the creation sink answers.
func (h *healthController) Ready(c *gin.Context) {
	if h.sink == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.sink.Health(ctx); err != nil {
		middleware.LoggerFrom(c).Warn("sink health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "sink": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
