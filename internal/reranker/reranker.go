// Package reranker re-orders candidate passages between retrieval and
// context assembly.
//
// Four interchangeable strategies are provided: lexical term overlap,
// embedding cosine similarity, a weighted hybrid of the two, and
// similarity-based deduplication. Reranking is an optimization, not a
// correctness requirement: callers go through Apply, which degrades to the
// unmodified candidate order when a strategy fails.
package reranker

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Sentinel errors for reranking.
var (
	// ErrMissingEmbedding indicates a strategy needed an embedding the
	// candidate or query did not carry.
	ErrMissingEmbedding = errors.New("missing embedding")

	// ErrInvalidWeights indicates unusable hybrid weights.
	ErrInvalidWeights = errors.New("invalid hybrid weights")
)

// Document is a candidate passage under reranking.
type Document struct {
	ID   string
	Text string

	// Score is the original similarity score from retrieval.
	Score float32

	// Embedding is the stored vector of the passage, required by the
	// semantic, hybrid and diversity strategies.
	Embedding []float32
}

// Query carries the question text and its embedding.
type Query struct {
	Text      string
	Embedding []float32
}

// Strategy re-orders and truncates a candidate list.
type Strategy interface {
	// Rerank returns at most topK documents ordered by the strategy's
	// relevance judgment. The input slice is not modified.
	Rerank(ctx context.Context, query Query, docs []Document, topK int) ([]Document, error)

	// Name identifies the strategy in logs.
	Name() string
}

// Apply runs a strategy and falls back to the first topK unmodified
// candidates when it fails. The query is always answered with something.
func Apply(ctx context.Context, logger *zap.Logger, strategy Strategy, query Query, docs []Document, topK int) []Document {
	if strategy == nil {
		return truncate(docs, topK)
	}
	ranked, err := strategy.Rerank(ctx, query, docs, topK)
	if err != nil {
		if logger != nil {
			logger.Warn("reranking degraded to retrieval order",
				zap.String("strategy", strategy.Name()),
				zap.Error(err),
			)
		}
		return truncate(docs, topK)
	}
	return ranked
}

// truncate returns the first topK documents without reordering.
func truncate(docs []Document, topK int) []Document {
	if topK <= 0 || topK >= len(docs) {
		out := make([]Document, len(docs))
		copy(out, docs)
		return out
	}
	out := make([]Document, topK)
	copy(out, docs[:topK])
	return out
}

// cosineSimilarity computes the cosine of the angle between two vectors.
func cosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrMissingEmbedding
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension mismatch %d vs %d", ErrMissingEmbedding, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
