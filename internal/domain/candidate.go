package domain

import "strings"

// UnscoredReason records why a candidate ended up without a similarity score.
type UnscoredReason string

const (
	UnscoredNoImageURL      UnscoredReason = "no_image_url"
	UnscoredFetchFailed     UnscoredReason = "fetch_failed"
	UnscoredEmbeddingFailed UnscoredReason = "embedding_failed"
)

// Query is the text search query produced by the description generator.
type Query string

// Image is an uploaded or fetched image held for the duration of a request.
type Image struct {
	Data        []byte
	ContentType string
	Path        string // set once the bytes are on disk
}

// Candidate is one product listing returned by a shopping source.
// Optional fields are nil when the source did not provide them.
//
// A Candidate is enriched stage by stage; each With* method returns a new
// value and leaves the receiver untouched.
type Candidate struct {
	Name           string  `json:"name"`
	Price          *string `json:"price"`
	SourceURL      *string `json:"source_url"`
	ImageURL       *string `json:"image_url"`
	Rating         *string `json:"rating"`
	LocalImagePath *string `json:"local_image_path"`
	Source         string  `json:"source"`

	Embedding      *EmbeddingVector `json:"-"`
	UnscoredReason UnscoredReason   `json:"-"`
}

// HasImage reports whether the candidate carries an image URL.
func (c Candidate) HasImage() bool {
	return c.ImageURL != nil && *c.ImageURL != ""
}

// WithLocalImage returns a copy with the downloaded image path set.
func (c Candidate) WithLocalImage(path string) Candidate {
	c.LocalImagePath = &path
	return c
}

// WithEmbedding returns a copy carrying v.
func (c Candidate) WithEmbedding(v EmbeddingVector) Candidate {
	c.Embedding = &v
	c.UnscoredReason = ""
	return c
}

// WithUnscored returns a copy marked as unscorable for the given reason.
func (c Candidate) WithUnscored(reason UnscoredReason) Candidate {
	c.Embedding = nil
	c.UnscoredReason = reason
	return c
}

// OptString trims s and returns nil when nothing is left.
func OptString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
