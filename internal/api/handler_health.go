package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "Equipment API"

// Health answers liveness and readiness probes. startupErr is the error that
// kept the service from becoming ready, typically a failed migration.
type Health struct {
	startupErr error
}

// NewHealth creates the probe handlers.
func NewHealth(startupErr error) *Health {
	return &Health{startupErr: startupErr}
}

// Live handles GET /health. It never consults the store.
func (h *Health) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "Healthy",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
	})
}

// Ready handles GET /ready.
func (h *Health) Ready(c *gin.Context) {
	if h.startupErr != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "NotReady",
			"message": h.startupErr.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Ready"})
}

// Unavailable answers every API route while the service is not ready.
func (h *Health) Unavailable(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "service is not ready"})
}
