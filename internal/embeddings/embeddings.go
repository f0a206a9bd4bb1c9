// Package embeddings provides clients for the external embedding and
// completion API.
//
// The retrieval core only depends on the Embedder and Completer interfaces;
// the OpenAI-compatible implementation and the deterministic fallback both
// satisfy them.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrCompletionFailed indicates completion generation failure.
	ErrCompletionFailed = errors.New("completion generation failed")
)

// Embedder generates vector embeddings from text.
//
// Batch embedding must preserve input ordering: result[i] is the embedding
// of texts[i].
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension produced by this embedder.
	Dimension() int
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "assistant"
)

// Message is a single chat message sent to the completion API.
type Message struct {
	Role    Role
	Content string
}

// Completer generates a text completion from an ordered message list.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
