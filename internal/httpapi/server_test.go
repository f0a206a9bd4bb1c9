package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/collections"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/embeddings"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/guardrails"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/retrieval"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/vectordb"
)

// cannedCompleter returns a fixed answer.
type cannedCompleter struct{ answer string }

func (c cannedCompleter) Complete(context.Context, []embeddings.Message) (string, error) {
	return c.answer, nil
}

func newTestServer(t *testing.T, policy guardrails.AccessPolicy) *Server {
	t.Helper()

	db, err := vectordb.NewChromemClient(vectordb.ChromemConfig{Path: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := collections.NewStore(db, zap.NewNop(), collections.Config{})
	require.NoError(t, err)

	embedder, err := embeddings.NewDeterministic(16)
	require.NoError(t, err)

	pipeline, err := retrieval.NewPipeline(store, embedder, nil, zap.NewNop(), retrieval.Config{})
	require.NoError(t, err)

	answerer, err := retrieval.NewAnswerer(pipeline, cannedCompleter{answer: "grounded answer"},
		guardrails.LengthValidator{MaxChars: 1000}, guardrails.PassthroughSanitizer{}, zap.NewNop())
	require.NoError(t, err)

	return NewServer(store, pipeline, answerer, policy, zap.NewNop())
}

func doJSON(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCollectionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/v1/collections",
		`{"name":"docs","vector_dim":16,"tags":["prod"],"description":"test docs"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var md collections.CollectionMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
	assert.Equal(t, "docs", md.Name)
	assert.Equal(t, []string{"prod"}, md.Tags)

	rec = doJSON(t, s, http.MethodGet, "/v1/collections/docs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPatch, "/v1/collections/docs", `{"description":"updated"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &md))
	assert.Equal(t, "updated", md.Description)

	rec = doJSON(t, s, http.MethodGet, "/v1/collections", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []collections.CollectionMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = doJSON(t, s, http.MethodDelete, "/v1/collections/docs", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/v1/collections/docs", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCollectionRejectsBadName(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodPost, "/v1/collections", `{"name":"Bad Name!","vector_dim":16}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadUnloadEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/v1/collections", `{"name":"docs","vector_dim":16}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/collections/docs/load", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/collections/docs/unload", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIngestAndQuery(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/v1/documents",
		`{"collection":"facts","text":"The sky is blue. Grass is green.","metadata":{"source":"test"}}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/v1/query",
		`{"question":"What color is grass?","collections":["facts"],"top_k":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Answer  string `json:"answer"`
		Sources []struct {
			Collection string `json:"collection"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "grounded answer", resp.Answer)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "facts", resp.Sources[0].Collection)
}

func TestQueryAccessPolicy(t *testing.T) {
	s := newTestServer(t, guardrails.RequireTag())

	rec := doJSON(t, s, http.MethodPost, "/v1/documents",
		`{"collection":"secrets","text":"The launch code is 1234."}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// No matching role tag: every collection is filtered out.
	rec = doJSON(t, s, http.MethodPost, "/v1/query",
		`{"question":"What is the launch code?","collections":["secrets"]}`,
		map[string]string{"X-Role": "intern"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Tag the collection with the role and the query goes through.
	rec = doJSON(t, s, http.MethodPatch, "/v1/collections/secrets", `{"tags":["intern"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/query",
		`{"question":"What is the launch code?","collections":["secrets"]}`,
		map[string]string{"X-Role": "intern"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/v1/documents",
		`{"collection":"facts","text":"Grass is green."}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/query",
		`{"question":"   ","collections":["facts"]}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
