package domain

import "math"

// RankedResult is a candidate as returned to the client, with its similarity
// to the uploaded image. Similarity is nil for unscored candidates.
type RankedResult struct {
	Name           string         `json:"name"`
	Price          *string        `json:"price"`
	SourceURL      *string        `json:"source_url"`
	ImageURL       *string        `json:"image_url"`
	Rating         *string        `json:"rating"`
	LocalImagePath *string        `json:"local_image_path"`
	Source         string         `json:"source"`
	Similarity     *float64       `json:"similarity"`
	UnscoredReason UnscoredReason `json:"unscored_reason,omitempty"`
}

// NewRankedResult copies the public fields of c. The embedding is dropped.
func NewRankedResult(c Candidate, similarity *float64) RankedResult {
	r := RankedResult{
		Name:           c.Name,
		Price:          c.Price,
		SourceURL:      c.SourceURL,
		ImageURL:       c.ImageURL,
		Rating:         c.Rating,
		LocalImagePath: c.LocalImagePath,
		Source:         c.Source,
		Similarity:     similarity,
	}
	if similarity == nil {
		r.UnscoredReason = c.UnscoredReason
		if r.UnscoredReason == "" {
			r.UnscoredReason = UnscoredEmbeddingFailed
		}
	}
	return r
}

// Score returns the similarity used for ordering; unscored results sort as -Inf.
func (r RankedResult) Score() float64 {
	if r.Similarity == nil {
		return math.Inf(-1)
	}
	return *r.Similarity
}

// MatchResult is the pipeline output for one uploaded image.
// MatchID names the workspace holding the fetched images.
type MatchResult struct {
	MatchID     string         `json:"match_id"`
	Description string         `json:"description"`
	Results     []RankedResult `json:"results"`
}
