package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	Environment string
	Service     string
	Version     string
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(environment, service, version string) *HealthHandler {
	return &HealthHandler{
		Environment: environment,
		Service:     service,
		Version:     version,
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.Environment,
		"service":     h.Service,
		"version":     h.Version,
	})
}
