package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromem(t *testing.T) *ChromemClient {
	t.Helper()
	client, err := NewChromemClient(ChromemConfig{Path: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestChromemCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newTestChromem(t)

	exists, err := client.HasCollection(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)

	err = client.CreateCollection(ctx, "docs", StandardSchema(4), "test collection")
	require.NoError(t, err)

	err = client.CreateCollection(ctx, "docs", StandardSchema(4), "")
	assert.ErrorIs(t, err, ErrCollectionExists)

	exists, err = client.HasCollection(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, exists)

	desc, err := client.DescribeCollection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", desc.Name)
	assert.Equal(t, 4, desc.VectorDim)

	names, err := client.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "docs")

	require.NoError(t, client.DropCollection(ctx, "docs"))
	exists, err = client.HasCollection(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemDimensionsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir()

	client, err := NewChromemClient(ChromemConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, client.CreateCollection(ctx, "docs", StandardSchema(5), ""))
	require.NoError(t, client.Close())

	reopened, err := NewChromemClient(ChromemConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	desc, err := reopened.DescribeCollection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 5, desc.VectorDim)

	// Dropping the collection clears the persisted record too.
	require.NoError(t, reopened.DropCollection(ctx, "docs"))
	third, err := NewChromemClient(ChromemConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = third.Close() })
	_, err = third.DescribeCollection(ctx, "docs")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemRejectsInvalidNames(t *testing.T) {
	ctx := context.Background()
	client := newTestChromem(t)

	_, err := client.HasCollection(ctx, "Bad Name")
	assert.ErrorIs(t, err, ErrInvalidCollectionName)

	err = client.CreateCollection(ctx, "../escape", StandardSchema(4), "")
	assert.ErrorIs(t, err, ErrInvalidCollectionName)
}

func TestChromemInsertAndSearch(t *testing.T) {
	ctx := context.Background()
	client := newTestChromem(t)
	require.NoError(t, client.CreateCollection(ctx, "docs", StandardSchema(3), ""))

	records := []Record{
		{
			Embedding:  []float32{1, 0, 0},
			Text:       "grass is green",
			Attributes: map[string]any{"topic": "nature"},
		},
		{
			Embedding:  []float32{0, 1, 0},
			Text:       "the sky is blue",
			Attributes: map[string]any{"topic": "weather"},
		},
	}
	result, err := client.Insert(ctx, "docs", records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.InsertedCount)
	require.Len(t, result.IDs, 2)
	assert.NotZero(t, result.IDs[0])

	hits, err := client.Search(ctx, "docs", []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "grass is green", hits[0].Text)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "nature", hits[0].Attributes["topic"])
	assert.NotContains(t, hits[0].Attributes, "text")
	assert.Len(t, hits[0].Embedding, 3)
}

func TestChromemSearchWithFilters(t *testing.T) {
	ctx := context.Background()
	client := newTestChromem(t)
	require.NoError(t, client.CreateCollection(ctx, "docs", StandardSchema(3), ""))

	records := []Record{
		{Embedding: []float32{1, 0, 0}, Text: "a", Attributes: map[string]any{"env": "prod", "priority": 1}},
		{Embedding: []float32{0.9, 0.1, 0}, Text: "b", Attributes: map[string]any{"env": "dev", "priority": 5}},
		{Embedding: []float32{0.8, 0.2, 0}, Text: "c", Attributes: map[string]any{"env": "prod", "priority": 7}},
	}
	_, err := client.Insert(ctx, "docs", records)
	require.NoError(t, err)

	// Exact-match filters push down to the store's where clause.
	hits, err := client.Search(ctx, "docs", []float32{1, 0, 0}, 3, []Filter{Eq("env", "prod")})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "prod", h.Attributes["env"])
	}

	// Range filters are evaluated in-process after the query.
	hits, err = client.Search(ctx, "docs", []float32{1, 0, 0}, 3, []Filter{
		{Field: "priority", Operator: OpGt, Value: 4},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].Text)
	assert.Equal(t, "c", hits[1].Text)
}

func TestChromemSearchEmptyCollection(t *testing.T) {
	ctx := context.Background()
	client := newTestChromem(t)
	require.NoError(t, client.CreateCollection(ctx, "docs", StandardSchema(3), ""))

	hits, err := client.Search(ctx, "docs", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemDelete(t *testing.T) {
	ctx := context.Background()
	client := newTestChromem(t)
	require.NoError(t, client.CreateCollection(ctx, "docs", StandardSchema(3), ""))

	_, err := client.Insert(ctx, "docs", []Record{
		{Embedding: []float32{1, 0, 0}, Text: "a", Attributes: map[string]any{"env": "prod"}},
		{Embedding: []float32{0, 1, 0}, Text: "b", Attributes: map[string]any{"env": "dev"}},
	})
	require.NoError(t, err)

	deleted, err := client.Delete(ctx, "docs", []Filter{Eq("env", "prod")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	stats, err := client.GetStatistics(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RowCount)

	_, err = client.Delete(ctx, "docs", nil)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestChromemLoadRelease(t *testing.T) {
	ctx := context.Background()
	client := newTestChromem(t)
	require.NoError(t, client.CreateCollection(ctx, "docs", StandardSchema(3), ""))

	progress, err := client.GetLoadProgress(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, progress)

	require.NoError(t, client.LoadCollection(ctx, "docs"))
	progress, err = client.GetLoadProgress(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 100, progress)

	require.NoError(t, client.ReleaseCollection(ctx, "docs"))
	progress, err = client.GetLoadProgress(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, progress)

	err = client.LoadCollection(ctx, "missing")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemInsertIntoMissingCollection(t *testing.T) {
	ctx := context.Background()
	client := newTestChromem(t)

	_, err := client.Insert(ctx, "missing", []Record{{Embedding: []float32{1, 0, 0}}})
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}
