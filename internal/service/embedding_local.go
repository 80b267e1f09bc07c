package service

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/metrics"
)

// LocalEmbedder is an in-process feature extractor. It normalizes the image
// the way vision transformers expect, then average-pools the RGB channels
// over a square grid; the grid cells play the role of the pooled summary
// token. Output depends only on the image bytes.
type LocalEmbedder struct {
	model     string
	inputSize int
	grid      int
	sem       *semaphore.Weighted
	metrics   *metrics.Metrics
}

// NewLocalEmbedder validates the geometry. Dimensions must be 3*g*g for some
// grid size g no larger than the input size.
func NewLocalEmbedder(cfg config.EmbeddingConfig, m *metrics.Metrics) (*LocalEmbedder, error) {
	grid := int(math.Round(math.Sqrt(float64(cfg.Dimensions) / 3)))
	if grid <= 0 || 3*grid*grid != cfg.Dimensions {
		return nil, fmt.Errorf("dimensions %d is not 3*g*g", cfg.Dimensions)
	}
	if grid > cfg.InputSize {
		return nil, fmt.Errorf("grid %d exceeds input size %d", grid, cfg.InputSize)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &LocalEmbedder{
		model:     cfg.Model,
		inputSize: cfg.InputSize,
		grid:      grid,
		sem:       semaphore.NewWeighted(int64(workers)),
		metrics:   m,
	}, nil
}

func (e *LocalEmbedder) Model() string { return e.model }

// Embed decodes, normalizes and pools img. At most Workers calls run the
// CPU-bound part at once.
func (e *LocalEmbedder) Embed(ctx context.Context, img domain.Image) (domain.EmbeddingVector, error) {
	decoded, _, err := decodeImage(img.Data)
	if err != nil {
		return domain.EmbeddingVector{}, decodeFailed(img.Path, err)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return domain.EmbeddingVector{}, modelUnavailable(img.Path, err)
	}
	defer e.sem.Release(1)

	start := time.Now()
	input := prepareInput(decoded, e.inputSize)
	values := e.pool(input)
	if e.metrics != nil {
		e.metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	}

	return domain.EmbeddingVector{Model: e.model, Values: values}, nil
}

// pool averages normalized pixels per grid cell, channel-major.
func (e *LocalEmbedder) pool(img *image.RGBA) []float32 {
	g := e.grid
	size := e.inputSize
	values := make([]float32, 3*g*g)

	for cy := 0; cy < g; cy++ {
		y0, y1 := cy*size/g, (cy+1)*size/g
		for cx := 0; cx < g; cx++ {
			x0, x1 := cx*size/g, (cx+1)*size/g

			var sum [3]float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					px := normalizedPixel(img, x, y)
					sum[0] += float64(px[0])
					sum[1] += float64(px[1])
					sum[2] += float64(px[2])
				}
			}
			n := float64((y1 - y0) * (x1 - x0))
			cell := cy*g + cx
			for c := 0; c < 3; c++ {
				values[c*g*g+cell] = float32(sum[c] / n)
			}
		}
	}
	return values
}
