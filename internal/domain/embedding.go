package domain

// EmbeddingVector is a fixed-length image feature vector. Vectors produced
// by different models are not comparable, so each carries its model id.
// Values must not be modified after the vector is produced.
type EmbeddingVector struct {
	Model  string    `json:"model"`
	Values []float32 `json:"values"`
}

// Dim returns the vector length.
func (v EmbeddingVector) Dim() int {
	return len(v.Values)
}
