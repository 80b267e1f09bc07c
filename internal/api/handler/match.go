package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/service"
)

// Matcher runs the match pipeline for one upload.
type Matcher interface {
	Match(ctx context.Context, req service.MatchRequest) (domain.MatchResult, error)
}

// MatchHandler handles garment upload endpoints.
type MatchHandler struct {
	matcher  Matcher
	maxBytes int64
}

// NewMatchHandler creates a new match handler.
// Parameters:
//   - matcher: pipeline to run for each upload.
//   - maxUploadMB: upload size limit in megabytes; 0 means 10.
//
// Returns:
//   - *MatchHandler: initialized handler.
func NewMatchHandler(matcher Matcher, maxUploadMB int64) *MatchHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &MatchHandler{
		matcher:  matcher,
		maxBytes: maxUploadMB << 20,
	}
}

// Match handles POST /api/v1/match (and the POST /process/ alias).
// The multipart form carries file, garment_type and optional garment_layer.
func (h *MatchHandler) Match(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Request.ContentLength > h.maxBytes {
		failure(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxBytes))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			failure(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxBytes))
			return
		}
		failure(c, http.StatusBadRequest, "file is required")
		return
	}
	garmentType := strings.TrimSpace(c.PostForm("garment_type"))
	garmentLayer := strings.TrimSpace(c.PostForm("garment_layer"))
	if garmentType == "" {
		failure(c, http.StatusBadRequest, "garment_type is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		failure(c, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		failure(c, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		failure(c, http.StatusBadRequest, "file must be an image")
		return
	}

	result, err := h.matcher.Match(ctx, service.MatchRequest{
		RequestID:    logger.GetRequestID(ctx),
		Filename:     fh.Filename,
		Image:        data,
		GarmentType:  garmentType,
		GarmentLayer: garmentLayer,
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.CtxError(ctx, "Match failed: %v", err)
		}
		failure(c, status, publicMessage(err))
		return
	}

	success(c, result)
}

// publicMessage is the error text sent to clients. Server-side failures get a
// fixed message so paths and upstream responses stay in the logs.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrDecode):
		return "uploaded image could not be decoded"
	case errors.Is(err, domain.ErrInvalidInput):
		return err.Error()
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, domain.ErrAllSourcesFailed):
		return "all product sources failed"
	case errors.Is(err, domain.ErrDescription):
		return "garment description failed"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "embedding model unavailable"
	case errors.Is(err, domain.ErrIO):
		return "workspace storage failed"
	default:
		return "internal error"
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
