package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
)

// EmbeddingCache stores vectors in Redis keyed by model and image content hash.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmbeddingCache connects to Redis and pings it.
func NewEmbeddingCache(ctx context.Context, cfg config.CacheConfig) (*EmbeddingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &EmbeddingCache{client: client, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection.
func (c *EmbeddingCache) Close() error {
	return c.client.Close()
}

func cacheKey(model, digest string) string {
	return "emb:" + model + ":" + digest
}

// Get returns the cached vector, or ok=false on a miss.
func (c *EmbeddingCache) Get(ctx context.Context, model, digest string) (domain.EmbeddingVector, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(model, digest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.EmbeddingVector{}, false, nil
	}
	if err != nil {
		return domain.EmbeddingVector{}, false, err
	}
	var v domain.EmbeddingVector
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.EmbeddingVector{}, false, err
	}
	return v, true, nil
}

// Set stores v with the configured TTL.
func (c *EmbeddingCache) Set(ctx context.Context, digest string, v domain.EmbeddingVector) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(v.Model, digest), raw, c.ttl).Err()
}

// CachedEmbedder consults the cache before calling the wrapped embedder.
// Cache failures are logged and never fail an embedding.
type CachedEmbedder struct {
	next    Embedder
	cache   *EmbeddingCache
	metrics *metrics.Metrics
}

// NewCachedEmbedder wraps next.
func NewCachedEmbedder(next Embedder, cache *EmbeddingCache, m *metrics.Metrics) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, metrics: m}
}

func (c *CachedEmbedder) Model() string { return c.next.Model() }

func (c *CachedEmbedder) Embed(ctx context.Context, img domain.Image) (domain.EmbeddingVector, error) {
	digest := calculateMD5(img.Data)

	v, ok, err := c.cache.Get(ctx, c.next.Model(), digest)
	if err != nil {
		logger.CtxWarn(ctx, "Embedding cache read failed: %v", err)
	}
	if ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return v, nil
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	v, err = c.next.Embed(ctx, img)
	if err != nil {
		return v, err
	}
	if err := c.cache.Set(ctx, digest, v); err != nil {
		logger.CtxWarn(ctx, "Embedding cache write failed: %v", err)
	}
	return v, nil
}
