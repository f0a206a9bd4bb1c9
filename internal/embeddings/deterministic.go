package embeddings

import (
	"context"
	"fmt"
	"math"
)

// Deterministic is a character-code hash embedder.
//
// It produces a stable pseudo-embedding from character codes alone, with no
// network call. It is used to seed vectors for registry records where the
// vector only serves as a storage slot and the attribute filter does the
// lookup, and as a test double. It is not a semantic embedding.
type Deterministic struct {
	dim int
}

// NewDeterministic creates a deterministic embedder of the given dimension.
func NewDeterministic(dim int) (*Deterministic, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return &Deterministic{dim: dim}, nil
}

// EmbedDocuments embeds each text independently, preserving order.
func (d *Deterministic) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embed(t)
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (d *Deterministic) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return d.embed(text), nil
}

// Dimension returns the embedding dimension.
func (d *Deterministic) Dimension() int {
	return d.dim
}

// embed folds character codes into dim buckets and L2-normalizes the result.
// The all-zero case (empty text) gets a unit vector in the first component so
// cosine similarity stays defined.
func (d *Deterministic) embed(text string) []float32 {
	vec := make([]float32, d.dim)
	for i, r := range text {
		vec[i%d.dim] += float32(r%97) / 97.0
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

var _ Embedder = (*Deterministic)(nil)
