package service

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/domain"
)

// candidateAt builds a candidate whose cosine similarity with vec(1, 0) is sim.
func candidateAt(name string, sim float64) domain.Candidate {
	c := domain.Candidate{Name: name, ImageURL: domain.OptString("http://img/" + name)}
	return c.WithEmbedding(vec(float32(sim), float32(math.Sqrt(1-sim*sim))))
}

func names(results []domain.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Name
	}
	return out
}

func TestRankOrdersScoredBeforeUnscored(t *testing.T) {
	query := vec(1, 0)
	candidates := []domain.Candidate{
		candidateAt("A", 0.90),
		{Name: "B"},
		candidateAt("C", 0.95),
		{Name: "D", ImageURL: domain.OptString("http://img/d")},
	}
	candidates[1] = candidates[1].WithUnscored(domain.UnscoredNoImageURL)
	candidates[3] = candidates[3].WithUnscored(domain.UnscoredFetchFailed)

	got := Rank(query, candidates)

	assert.Equal(t, []string{"C", "A", "B", "D"}, names(got))
	require.NotNil(t, got[0].Similarity)
	assert.InDelta(t, 0.95, *got[0].Similarity, 1e-4)
	assert.Nil(t, got[2].Similarity)
	assert.Equal(t, domain.UnscoredNoImageURL, got[2].UnscoredReason)
	assert.Equal(t, domain.UnscoredFetchFailed, got[3].UnscoredReason)
	assert.Empty(t, got[0].UnscoredReason)
}

func TestRankTiesKeepInputOrder(t *testing.T) {
	query := vec(1, 0)
	candidates := []domain.Candidate{
		candidateAt("first", 0.5),
		candidateAt("second", 0.5),
		candidateAt("third", 0.5),
	}
	assert.Equal(t, []string{"first", "second", "third"}, names(Rank(query, candidates)))
}

func TestRankDimensionMismatchIsUnscored(t *testing.T) {
	query := vec(1, 0)
	bad := domain.Candidate{Name: "bad"}.WithEmbedding(vec(1, 0, 0))
	got := Rank(query, []domain.Candidate{bad, candidateAt("good", 0.1)})

	assert.Equal(t, []string{"good", "bad"}, names(got))
	assert.Nil(t, got[1].Similarity)
	assert.Equal(t, domain.UnscoredEmbeddingFailed, got[1].UnscoredReason)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	candidates := []domain.Candidate{candidateAt("A", 0.1), candidateAt("B", 0.9)}
	Rank(vec(1, 0), candidates)
	assert.Equal(t, "A", candidates[0].Name)
	assert.NotNil(t, candidates[0].Embedding)
}

func TestRankProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	query := randomVec(r, 16)

	for round := 0; round < 50; round++ {
		n := r.Intn(30)
		candidates := make([]domain.Candidate, n)
		for i := range candidates {
			c := domain.Candidate{Name: string(rune('a' + i%26))}
			if r.Intn(3) > 0 {
				c = c.WithEmbedding(randomVec(r, 16))
			}
			candidates[i] = c
		}

		got := Rank(query, candidates)
		if len(got) != n {
			t.Fatalf("Rank() returned %d results, want %d", len(got), n)
		}

		seenUnscored := false
		for i, res := range got {
			if res.Similarity == nil {
				seenUnscored = true
				continue
			}
			if seenUnscored {
				t.Fatalf("scored result at %d follows an unscored one", i)
			}
			if i > 0 && got[i-1].Similarity != nil && *got[i-1].Similarity < *res.Similarity {
				t.Fatalf("results not descending at %d", i)
			}
		}
	}
}
