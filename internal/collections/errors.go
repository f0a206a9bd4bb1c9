package collections

import "errors"

// Error taxonomy for collection store operations. Callers branch on these
// with errors.Is; the wrapped message carries the operational detail.
var (
	// ErrRemoteUnavailable indicates the vector database or embedding API
	// could not be reached within the retry budget. Retried before surfacing.
	ErrRemoteUnavailable = errors.New("remote service unavailable")

	// ErrNotFound indicates an absent collection or metadata record.
	// Never retried.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input: a bad collection name, a
	// dimension mismatch, or a non-finite embedding. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrProvision indicates a failed collection create or index build. The
	// existence cache is left unset so a retry can re-attempt cleanly.
	ErrProvision = errors.New("collection provisioning failed")
)
