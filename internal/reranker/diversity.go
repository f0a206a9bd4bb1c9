package reranker

import (
	"context"
	"fmt"
)

// DefaultDiversityThreshold is the cosine similarity above which two
// passages are considered duplicates.
const DefaultDiversityThreshold = 0.8

// Diversity deduplicates near-identical passages.
//
// Candidates are visited in their given order and accepted unless their
// embedding's cosine similarity to any already-accepted candidate exceeds
// the threshold. Selection stops once topK candidates are accepted.
type Diversity struct {
	threshold float32
}

// NewDiversity creates a diversity strategy with the given similarity
// threshold. Zero uses the default.
func NewDiversity(threshold float32) *Diversity {
	if threshold == 0 {
		threshold = DefaultDiversityThreshold
	}
	return &Diversity{threshold: threshold}
}

func (d *Diversity) Name() string { return "diversity" }

// Rerank greedily selects candidates dissimilar to everything already
// selected. Input order is preserved among the accepted.
func (d *Diversity) Rerank(_ context.Context, _ Query, docs []Document, topK int) ([]Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = len(docs)
	}

	accepted := make([]Document, 0, topK)
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return nil, fmt.Errorf("%w: document %s has no embedding", ErrMissingEmbedding, doc.ID)
		}
		duplicate := false
		for _, kept := range accepted {
			sim, err := cosineSimilarity(doc.Embedding, kept.Embedding)
			if err != nil {
				return nil, fmt.Errorf("comparing documents %s and %s: %w", doc.ID, kept.ID, err)
			}
			if sim > d.threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		accepted = append(accepted, doc)
		if len(accepted) == topK {
			break
		}
	}
	return accepted, nil
}
