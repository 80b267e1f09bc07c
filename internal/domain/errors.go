package domain

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// use errors.Is without caring about the concrete type.
var (
	ErrDecode            = errors.New("image could not be decoded")
	ErrModelUnavailable  = errors.New("embedding model unavailable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrScrape            = errors.New("scrape failed")
	ErrFetch             = errors.New("image fetch failed")
	ErrDescription       = errors.New("description generation failed")
	ErrIO                = errors.New("workspace io failed")
	ErrAllSourcesFailed  = errors.New("all sources failed")
	ErrInvalidInput      = errors.New("invalid input")
)

// EmbeddingError reports a failed embedding of one image. Err wraps either
// ErrDecode or ErrModelUnavailable.
type EmbeddingError struct {
	Path string
	Err  error
}

func (e *EmbeddingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("embed image: %v", e.Err)
	}
	return fmt.Sprintf("embed image %s: %v", e.Path, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// ScrapeError reports a failed search against one source. It drops only that
// source's contribution.
type ScrapeError struct {
	Source string
	Err    error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *ScrapeError) Unwrap() []error { return []error{ErrScrape, e.Err} }

// FetchError reports a failed candidate image download.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// DescriptionError wraps a description generator failure. Fatal for the request.
type DescriptionError struct {
	Err error
}

func (e *DescriptionError) Error() string {
	return fmt.Sprintf("describe garment: %v", e.Err)
}

func (e *DescriptionError) Unwrap() []error { return []error{ErrDescription, e.Err} }

// IOError reports a workspace filesystem failure. Fatal for the request.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	// *fs.PathError already names the operation and the path.
	var pathErr *fs.PathError
	if errors.As(e.Err, &pathErr) {
		return "workspace: " + e.Err.Error()
	}
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

// IsFatal reports whether err must abort the whole request.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDescription) ||
		errors.Is(err, ErrIO) ||
		errors.Is(err, ErrAllSourcesFailed)
}
