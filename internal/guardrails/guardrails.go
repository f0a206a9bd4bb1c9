// Package guardrails defines the content-policy boundary around the query
// path.
//
// The retrieval pipeline accepts an externally-supplied verdict before
// generation and an externally-supplied sanitizer after generation; it does
// not implement content policy itself. This package holds the contracts and
// a small set of baseline implementations.
package guardrails

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyQuestion indicates a blank input question.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// Verdict is the outcome of input validation.
type Verdict struct {
	Allowed bool
	Reason  string
}

// Allow is the verdict for an acceptable input.
func Allow() Verdict {
	return Verdict{Allowed: true}
}

// Deny is the verdict for a rejected input.
func Deny(reason string) Verdict {
	return Verdict{Allowed: false, Reason: reason}
}

// InputValidator judges a question before any generation happens.
type InputValidator interface {
	ValidateInput(ctx context.Context, question string) (Verdict, error)
}

// OutputSanitizer post-processes a generated answer before it reaches the
// caller.
type OutputSanitizer interface {
	SanitizeOutput(ctx context.Context, answer string) (string, error)
}

// AccessPolicy decides whether a role may query a collection given its tags.
// Pure function, applied at the API boundary rather than inside the
// retrieval pipeline.
type AccessPolicy func(role string, collectionTags []string) bool

// AllowAll is the access policy that permits every role.
func AllowAll(string, []string) bool { return true }

// RequireTag returns a policy granting access only when the collection
// carries a tag matching the caller's role.
func RequireTag() AccessPolicy {
	return func(role string, tags []string) bool {
		for _, t := range tags {
			if t == role {
				return true
			}
		}
		return false
	}
}

// LengthValidator rejects blank questions and questions over a maximum
// length. The zero value accepts any non-blank question.
type LengthValidator struct {
	// MaxChars bounds the question length; 0 means unbounded.
	MaxChars int
}

func (v LengthValidator) ValidateInput(_ context.Context, question string) (Verdict, error) {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return Deny("question is empty"), nil
	}
	if v.MaxChars > 0 && len(question) > v.MaxChars {
		return Deny("question exceeds maximum length"), nil
	}
	return Allow(), nil
}

// PassthroughSanitizer returns answers unchanged apart from surrounding
// whitespace.
type PassthroughSanitizer struct{}

func (PassthroughSanitizer) SanitizeOutput(_ context.Context, answer string) (string, error) {
	return strings.TrimSpace(answer), nil
}
