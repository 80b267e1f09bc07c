package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/stylematch/internal/artifacts"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
)

// SidecarLoader reads the raw results a source returned for a match.
type SidecarLoader interface {
	Load(ctx context.Context, matchID, source string) (artifacts.Sidecar, error)
}

// SidecarHandler serves stored per-source results.
type SidecarHandler struct {
	sidecars SidecarLoader
}

// NewSidecarHandler creates a new sidecar handler
func NewSidecarHandler(sidecars SidecarLoader) *SidecarHandler {
	return &SidecarHandler{sidecars: sidecars}
}

// Get handles GET /api/v1/matches/:match_id/sources/:source.
func (h *SidecarHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.sidecars.Load(ctx, c.Param("match_id"), c.Param("source"))
	switch {
	case err == nil:
		success(c, doc)
	case errors.Is(err, domain.ErrInvalidInput):
		failure(c, http.StatusBadRequest, "invalid match id or source")
	case errors.Is(err, artifacts.ErrNotFound):
		failure(c, http.StatusNotFound, "results not found")
	default:
		logger.CtxError(ctx, "Failed to load sidecar: %v", err)
		failure(c, http.StatusInternalServerError, "failed to load results")
	}
}
