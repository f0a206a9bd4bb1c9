package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeterministic(t *testing.T) {
	d, err := NewDeterministic(64)
	require.NoError(t, err)
	assert.Equal(t, 64, d.Dimension())

	_, err = NewDeterministic(0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewDeterministic(-5)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDeterministicIsStable(t *testing.T) {
	ctx := context.Background()
	d, err := NewDeterministic(32)
	require.NoError(t, err)

	a, err := d.EmbedQuery(ctx, "team_docs")
	require.NoError(t, err)
	b, err := d.EmbedQuery(ctx, "team_docs")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := d.EmbedQuery(ctx, "other_docs")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestDeterministicUnitNorm(t *testing.T) {
	ctx := context.Background()
	d, err := NewDeterministic(16)
	require.NoError(t, err)

	for _, text := range []string{"a", "hello world", "", "日本語テキスト"} {
		vec, err := d.EmbedQuery(ctx, text)
		require.NoError(t, err)
		require.Len(t, vec, 16)

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5, "text %q", text)
	}
}

func TestDeterministicEmbedDocumentsPreservesOrder(t *testing.T) {
	ctx := context.Background()
	d, err := NewDeterministic(8)
	require.NoError(t, err)

	texts := []string{"first", "second", "third"}
	batch, err := d.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := d.EmbedQuery(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch[%d] must equal the single embedding of texts[%d]", i, i)
	}
}

func TestDeterministicEmbedDocumentsRejectsEmpty(t *testing.T) {
	d, err := NewDeterministic(8)
	require.NoError(t, err)

	_, err = d.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
