package reranker

import (
	"context"
	"sort"
	"strings"
)

// minTermLength filters out short function words before matching.
const minTermLength = 2

// lengthBonusCap bounds the contribution of passage length to the score.
const lengthBonusCap = 0.2

// lengthBonusScale converts passage length to a bonus; 1000 characters earn
// 0.2, the cap.
const lengthBonusScale = 5000.0

// Lexical scores passages by how many query terms they contain.
//
// The score is the fraction of query terms (longer than two characters)
// found as substrings of the passage, plus a small bonus for longer
// passages. Ties keep their original retrieval order.
type Lexical struct{}

// NewLexical creates a lexical overlap strategy.
func NewLexical() *Lexical {
	return &Lexical{}
}

func (l *Lexical) Name() string { return "lexical" }

// Rerank orders documents by lexical overlap score, descending. The sort is
// stable so equal scores preserve retrieval order.
func (l *Lexical) Rerank(_ context.Context, query Query, docs []Document, topK int) ([]Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	terms := queryTerms(query.Text)
	ranked := make([]Document, len(docs))
	copy(ranked, docs)
	for i := range ranked {
		ranked[i].Score = lexicalScore(terms, ranked[i].Text)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return truncate(ranked, topK), nil
}

// queryTerms lowercases the query and keeps terms longer than two characters.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) > minTermLength {
			terms = append(terms, f)
		}
	}
	return terms
}

// lexicalScore is the fraction of query terms found as substrings of the
// passage plus a length bonus capped at lengthBonusCap.
func lexicalScore(terms []string, text string) float32 {
	lower := strings.ToLower(text)

	var overlap float32
	if len(terms) > 0 {
		matched := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
		overlap = float32(matched) / float32(len(terms))
	}

	bonus := float32(len(text)) / lengthBonusScale
	if bonus > lengthBonusCap {
		bonus = lengthBonusCap
	}
	return overlap + bonus
}
