package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
)

// BreakerSource is a source whose circuit breaker state can be reported.
type BreakerSource interface {
	GetSourceID() string
	State() gobreaker.State
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	sources []BreakerSource
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sources ...BreakerSource) *HealthHandler {
	return &HealthHandler{sources: sources}
}

// Health returns the health status of the service. An open breaker does not
// make the service unhealthy; it is reported per source.
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if len(h.sources) > 0 {
		states := make(map[string]string, len(h.sources))
		for _, s := range h.sources {
			states[s.GetSourceID()] = s.State().String()
		}
		body["sources"] = states
	}
	c.JSON(http.StatusOK, body)
}
