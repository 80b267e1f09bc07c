package service

import (
	"fmt"
	"math"

	"github.com/timmy/stylematch/internal/domain"
)

// CosineSimilarity returns the cosine of the angle between a and b, clamped
// to [-1, 1]. A zero-norm vector on either side yields 0 without error.
// Vectors of different length or from different models cannot be compared.
func CosineSimilarity(a, b domain.EmbeddingVector) (float64, error) {
	if a.Dim() != b.Dim() {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, a.Dim(), b.Dim())
	}
	if a.Model != b.Model {
		return 0, fmt.Errorf("%w: model %q vs %q", domain.ErrDimensionMismatch, a.Model, b.Model)
	}

	var dot, normA, normB float64
	for i := range a.Values {
		x, y := float64(a.Values[i]), float64(b.Values[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim)), nil
}
