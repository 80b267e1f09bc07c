package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
)

// Embedder turns an image into a fixed-length feature vector.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the image's feature vector. Failures are *domain.EmbeddingError
	// wrapping domain.ErrDecode (bad bytes) or domain.ErrModelUnavailable.
	Embed(ctx context.Context, img domain.Image) (domain.EmbeddingVector, error)

	// Model returns the id stamped on every vector this embedder produces.
	Model() string
}

// LazyEmbedder loads the underlying model on first use and shares it across
// all callers afterwards. A failed load is remembered; every later call
// reports the model as unavailable.
type LazyEmbedder struct {
	model string
	load  func() (Embedder, error)

	once  sync.Once
	inner Embedder
	err   error
}

// NewLazyEmbedder wraps load so it runs at most once.
func NewLazyEmbedder(model string, load func() (Embedder, error)) *LazyEmbedder {
	return &LazyEmbedder{model: model, load: load}
}

// Model returns the configured model id without loading the model.
func (l *LazyEmbedder) Model() string { return l.model }

// Embed loads the model if needed and delegates to it.
func (l *LazyEmbedder) Embed(ctx context.Context, img domain.Image) (domain.EmbeddingVector, error) {
	l.once.Do(func() {
		start := time.Now()
		l.inner, l.err = l.load()
		if l.err != nil {
			logger.CtxError(ctx, "Failed to load embedding model %s: %v", l.model, l.err)
			return
		}
		logger.With(logger.Fields{logger.FieldDurationMs: time.Since(start).Milliseconds()}).
			Info(ctx, "Loaded embedding model %s", l.model)
	})
	if l.err != nil {
		return domain.EmbeddingVector{}, &domain.EmbeddingError{
			Path: img.Path,
			Err:  fmt.Errorf("%w: %v", domain.ErrModelUnavailable, l.err),
		}
	}
	return l.inner.Embed(ctx, img)
}

// NewEmbedder builds the configured embedder behind a lazy handle, wrapped
// in the Redis cache when one is given.
func NewEmbedder(cfg config.EmbeddingConfig, cache *EmbeddingCache, m *metrics.Metrics) (Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var load func() (Embedder, error)
	switch cfg.Provider {
	case "local":
		logger.Warn("Embedding provider %q pools colour layout without learned features; use provider \"jina\" for production ranking", cfg.Provider)
		load = func() (Embedder, error) { return NewLocalEmbedder(cfg, m) }
	case "jina":
		load = func() (Embedder, error) { return NewJinaImageEmbedder(cfg, m), nil }
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	var e Embedder = NewLazyEmbedder(cfg.Model, load)
	if cache != nil {
		e = NewCachedEmbedder(e, cache, m)
	}
	return e, nil
}

func modelUnavailable(path string, err error) error {
	return &domain.EmbeddingError{Path: path, Err: fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)}
}

func decodeFailed(path string, err error) error {
	return &domain.EmbeddingError{Path: path, Err: err}
}
