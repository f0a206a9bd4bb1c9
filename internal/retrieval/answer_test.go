package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/embeddings"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/guardrails"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/reranker"
)

// echoCompleter records the prompt and returns a canned answer.
type echoCompleter struct {
	prompt string
	answer string
}

func (c *echoCompleter) Complete(_ context.Context, messages []embeddings.Message) (string, error) {
	for _, m := range messages {
		if m.Role == embeddings.RoleUser {
			c.prompt = m.Content
		}
	}
	return c.answer, nil
}

// upperSanitizer proves the sanitizer runs after generation.
type upperSanitizer struct{}

func (upperSanitizer) SanitizeOutput(_ context.Context, answer string) (string, error) {
	return strings.ToUpper(answer), nil
}

func TestAskEndToEnd(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(t, store, reranker.NewSemantic())
	ctx := context.Background()

	_, err := p.ProcessDocument(ctx, "facts", Document{Text: "The sky is blue. Grass is green."})
	require.NoError(t, err)

	completer := &echoCompleter{answer: "grass is green "}
	a, err := NewAnswerer(p, completer, guardrails.LengthValidator{MaxChars: 200}, upperSanitizer{}, zap.NewNop())
	require.NoError(t, err)

	answer, err := a.Ask(ctx, "What color is grass?", []string{"facts"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "GRASS IS GREEN ", answer.Text, "sanitizer runs after generation")
	require.NotEmpty(t, answer.Sources)
	assert.Contains(t, answer.Sources[0].Text, "Grass")

	assert.Contains(t, completer.prompt, "Grass is green", "context passages reach the model")
	assert.Contains(t, completer.prompt, "What color is grass?")
}

func TestAskRejectsInvalidQuestion(t *testing.T) {
	p := newTestPipeline(t, newMemStore(), nil)
	a, err := NewAnswerer(p, &echoCompleter{}, guardrails.LengthValidator{}, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "   ", []string{"facts"}, 2)
	assert.ErrorIs(t, err, ErrQuestionRejected)
}

func TestAskNoCollections(t *testing.T) {
	p := newTestPipeline(t, newMemStore(), nil)
	a, err := NewAnswerer(p, &echoCompleter{answer: "x"}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "question?", nil, 2)
	assert.ErrorIs(t, err, ErrNoCollections)
}

func TestAskNilGuardrailsPassThrough(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(t, store, nil)
	ctx := context.Background()

	_, err := p.ProcessDocument(ctx, "facts", Document{Text: "Grass is green."})
	require.NoError(t, err)

	a, err := NewAnswerer(p, &echoCompleter{answer: " raw answer "}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	answer, err := a.Ask(ctx, "What color is grass?", []string{"facts"}, 1)
	require.NoError(t, err)
	assert.Equal(t, " raw answer ", answer.Text, "no sanitizer means the answer is untouched")
}
