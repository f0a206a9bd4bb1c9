package ingestion

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/retrieval"
)

// recordingIngestor captures ProcessDocument calls.
type recordingIngestor struct {
	collection string
	doc        retrieval.Document
	calls      int
	err        error
}

func (r *recordingIngestor) ProcessDocument(_ context.Context, collection string, doc retrieval.Document) (int, error) {
	r.calls++
	r.collection = collection
	r.doc = doc
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestConsumer(t *testing.T, ingestor Ingestor) *Consumer {
	t.Helper()
	c, err := NewConsumer(ingestor, FileFetcher{}, zap.NewNop(), Config{})
	require.NoError(t, err)
	return c
}

func TestHandleIngestsDocument(t *testing.T) {
	path := writeTempDoc(t, "doc.txt", "Grass is green.")
	ingestor := &recordingIngestor{}
	c := newTestConsumer(t, ingestor)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg, err := json.Marshal(DocumentMessage{
		DocumentLocation: path,
		DocumentMimeType: "text/plain",
		TargetCollection: "facts",
		Timestamp:        ts,
	})
	require.NoError(t, err)

	require.NoError(t, c.Handle(context.Background(), msg))
	assert.Equal(t, 1, ingestor.calls)
	assert.Equal(t, "facts", ingestor.collection)
	assert.Equal(t, "Grass is green.", ingestor.doc.Text)
	assert.Equal(t, path, ingestor.doc.Metadata["document_location"])
	assert.Equal(t, "2025-06-01T12:00:00Z", ingestor.doc.Metadata["ingested_at"])
}

func TestHandleRejectsMalformedJSON(t *testing.T) {
	c := newTestConsumer(t, &recordingIngestor{})

	err := c.Handle(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestHandleRejectsIncompleteMessage(t *testing.T) {
	c := newTestConsumer(t, &recordingIngestor{})

	msg, _ := json.Marshal(DocumentMessage{DocumentLocation: "somewhere"})
	err := c.Handle(context.Background(), msg)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestHandleRejectsUnsupportedMimeType(t *testing.T) {
	path := writeTempDoc(t, "doc.bin", "\x00\x01")
	ingestor := &recordingIngestor{}
	c := newTestConsumer(t, ingestor)

	msg, _ := json.Marshal(DocumentMessage{
		DocumentLocation: path,
		DocumentMimeType: "application/octet-stream",
		TargetCollection: "facts",
	})
	err := c.Handle(context.Background(), msg)
	assert.ErrorIs(t, err, ErrUnsupportedMimeType)
	assert.Zero(t, ingestor.calls)
}

func TestHandleMissingFile(t *testing.T) {
	c := newTestConsumer(t, &recordingIngestor{})

	msg, _ := json.Marshal(DocumentMessage{
		DocumentLocation: "/nonexistent/file.txt",
		DocumentMimeType: "text/plain",
		TargetCollection: "facts",
	})
	assert.Error(t, c.Handle(context.Background(), msg))
}

func TestExtractTextMimeVariants(t *testing.T) {
	tests := []struct {
		mime string
		ok   bool
	}{
		{"text/plain", true},
		{"text/plain; charset=utf-8", true},
		{"text/markdown", true},
		{"TEXT/HTML", true},
		{"application/json", true},
		{"", true},
		{"application/pdf", false},
		{"image/png", false},
	}
	for _, tt := range tests {
		_, err := extractText([]byte("content"), tt.mime)
		if tt.ok {
			assert.NoError(t, err, tt.mime)
		} else {
			assert.ErrorIs(t, err, ErrUnsupportedMimeType, tt.mime)
		}
	}
}

func TestFileFetcherBaseDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	data, err := FileFetcher{BaseDir: dir}.Fetch(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
