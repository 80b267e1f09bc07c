package service

import (
	"math"
	"sort"

	"github.com/timmy/stylematch/internal/domain"
)

// Rank scores every candidate against query and orders them by descending
// similarity. Candidates without an embedding, or whose embedding cannot be
// compared with query, are kept and placed after all scored ones. Ties keep
// their input order. The input slice is not modified.
func Rank(query domain.EmbeddingVector, candidates []domain.Candidate) []domain.RankedResult {
	results := make([]domain.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = domain.NewRankedResult(c, score(query, c))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	return results
}

func score(query domain.EmbeddingVector, c domain.Candidate) *float64 {
	if c.Embedding == nil {
		return nil
	}
	sim, err := CosineSimilarity(query, *c.Embedding)
	if err != nil || math.IsNaN(sim) {
		return nil
	}
	return &sim
}
