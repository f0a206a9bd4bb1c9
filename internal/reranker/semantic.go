package reranker

import (
	"context"
	"fmt"
	"sort"
)

// Semantic scores passages by cosine similarity between the query embedding
// and each passage's stored embedding.
type Semantic struct{}

// NewSemantic creates an embedding similarity strategy.
func NewSemantic() *Semantic {
	return &Semantic{}
}

func (s *Semantic) Name() string { return "semantic" }

// Rerank orders documents by query-passage cosine similarity, descending.
// A document without a stored embedding fails the whole pass; Apply then
// degrades to retrieval order.
func (s *Semantic) Rerank(_ context.Context, query Query, docs []Document, topK int) ([]Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(query.Embedding) == 0 {
		return nil, fmt.Errorf("%w: query has no embedding", ErrMissingEmbedding)
	}

	ranked := make([]Document, len(docs))
	copy(ranked, docs)
	for i := range ranked {
		sim, err := cosineSimilarity(query.Embedding, ranked[i].Embedding)
		if err != nil {
			return nil, fmt.Errorf("scoring document %s: %w", ranked[i].ID, err)
		}
		ranked[i].Score = sim
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return truncate(ranked, topK), nil
}
