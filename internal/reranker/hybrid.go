package reranker

import (
	"context"
	"fmt"
	"sort"
)

// Default hybrid weights.
const (
	DefaultLexicalWeight  = 0.3
	DefaultSemanticWeight = 0.7
)

// Hybrid combines lexical overlap and embedding similarity as a weighted
// sum. Weights are taken exactly as configured; there is no implicit
// normalization, the caller controls what they sum to.
type Hybrid struct {
	lexicalWeight  float32
	semanticWeight float32
}

// NewHybrid creates a hybrid strategy with the given weights. Zero weights
// for both terms are rejected; negative weights are rejected.
func NewHybrid(lexicalWeight, semanticWeight float32) (*Hybrid, error) {
	if lexicalWeight < 0 || semanticWeight < 0 {
		return nil, fmt.Errorf("%w: weights cannot be negative", ErrInvalidWeights)
	}
	if lexicalWeight == 0 && semanticWeight == 0 {
		return nil, fmt.Errorf("%w: at least one weight must be positive", ErrInvalidWeights)
	}
	return &Hybrid{lexicalWeight: lexicalWeight, semanticWeight: semanticWeight}, nil
}

// NewDefaultHybrid creates a hybrid strategy with the default 0.3/0.7 split.
func NewDefaultHybrid() *Hybrid {
	h, _ := NewHybrid(DefaultLexicalWeight, DefaultSemanticWeight)
	return h
}

func (h *Hybrid) Name() string { return "hybrid" }

// Rerank orders documents by lexical*wL + semantic*wS, descending.
func (h *Hybrid) Rerank(_ context.Context, query Query, docs []Document, topK int) ([]Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(query.Embedding) == 0 {
		return nil, fmt.Errorf("%w: query has no embedding", ErrMissingEmbedding)
	}

	terms := queryTerms(query.Text)
	ranked := make([]Document, len(docs))
	copy(ranked, docs)
	for i := range ranked {
		sim, err := cosineSimilarity(query.Embedding, ranked[i].Embedding)
		if err != nil {
			return nil, fmt.Errorf("scoring document %s: %w", ranked[i].ID, err)
		}
		ranked[i].Score = h.lexicalWeight*lexicalScore(terms, ranked[i].Text) + h.semanticWeight*sim
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return truncate(ranked, topK), nil
}
