package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	check HealthCheck
}

// NewHealthHandler creates a health handler. A nil check always reports healthy.
func NewHealthHandler(check HealthCheck) *HealthHandler {
	return &HealthHandler{check: check}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.check != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
