package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// FileResolver maps a match id and file name to a path on disk.
type FileResolver interface {
	FetchedFile(id, name string) (string, error)
}

// FetchedHandler serves candidate images downloaded during a match.
type FetchedHandler struct {
	files FileResolver
}

// NewFetchedHandler creates a new fetched-image handler
func NewFetchedHandler(files FileResolver) *FetchedHandler {
	return &FetchedHandler{files: files}
}

// Get handles GET /fetched/:match_id/:file.
func (h *FetchedHandler) Get(c *gin.Context) {
	path, err := h.files.FetchedFile(c.Param("match_id"), c.Param("file"))
	if err != nil {
		failure(c, http.StatusBadRequest, "invalid file path")
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		failure(c, http.StatusNotFound, "file not found")
		return
	}
	c.File(path)
}
