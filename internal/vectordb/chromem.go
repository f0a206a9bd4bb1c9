package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("enterprise-rag-chatbot.vectordb.chromem")

// errEmbeddingsComputedUpstream guards against chromem invoking its own
// embedding function: every vector reaching this adapter is already embedded.
var errEmbeddingsComputedUpstream = errors.New("embeddings are computed upstream of the vector database")

// ChromemConfig holds configuration for the embedded chromem-go adapter.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string `koanf:"path"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/enterprise-rag-chatbot/vectordb"
	}
}

// ChromemClient implements Client over chromem-go, an embeddable pure-Go
// vector database. Used for development and test deployments where running
// Qdrant is not worth the operational cost.
//
// chromem-go stores metadata as string maps and has no expression engine, so
// filters beyond exact match are evaluated in-process after the similarity
// query. That is acceptable at embedded scale.
// dimsFileName is the sidecar file recording each collection's declared
// vector dimension. chromem exposes no way to read collection metadata
// back, so the adapter keeps its own record next to the database files.
const dimsFileName = "dims.json"

type ChromemClient struct {
	db     *chromem.DB
	config ChromemConfig
	path   string
	logger *zap.Logger

	// dims tracks the declared vector dimension per collection for schema
	// validation; chromem itself does not enforce one. Persisted to
	// dimsFileName so the dimensions survive a restart.
	mu   sync.Mutex
	dims map[string]int

	loaded sync.Map
}

// NewChromemClient creates a ChromemClient backed by a persistent database.
func NewChromemClient(config ChromemConfig, logger *zap.Logger) (*ChromemClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	path, err := expandHome(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem database: %w", err)
	}

	dims, err := loadDims(path)
	if err != nil {
		return nil, err
	}

	logger.Info("chromem client initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.Int("known_dimensions", len(dims)),
	)

	return &ChromemClient{db: db, config: config, path: path, logger: logger, dims: dims}, nil
}

// loadDims reads the persisted dimension record, if any.
func loadDims(path string) (map[string]int, error) {
	data, err := os.ReadFile(filepath.Join(path, dimsFileName))
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading dimension record: %w", err)
	}
	dims := make(map[string]int)
	if err := json.Unmarshal(data, &dims); err != nil {
		return nil, fmt.Errorf("parsing dimension record: %w", err)
	}
	return dims, nil
}

// saveDims writes the dimension record. Callers hold c.mu. A write failure
// is logged but not returned: the collection itself was already created or
// dropped, and the record is rebuilt on the next successful save.
func (c *ChromemClient) saveDims() {
	data, err := json.Marshal(c.dims)
	if err == nil {
		err = os.WriteFile(filepath.Join(c.path, dimsFileName), data, 0644)
	}
	if err != nil {
		c.logger.Warn("failed to persist dimension record", zap.Error(err))
	}
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// stubEmbeddingFunc must be passed wherever chromem accepts an embedding
// function: passing nil makes chromem fall back to its OpenAI default.
func stubEmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return nil, errEmbeddingsComputedUpstream
	}
}

func (c *ChromemClient) getCollection(name string) *chromem.Collection {
	return c.db.GetCollection(name, stubEmbeddingFunc())
}

// HasCollection reports whether the named collection exists.
func (c *ChromemClient) HasCollection(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	return c.getCollection(name) != nil, nil
}

// CreateCollection provisions a collection.
func (c *ChromemClient) CreateCollection(ctx context.Context, name string, schema Schema, description string) error {
	_, span := chromemTracer.Start(ctx, "ChromemClient.CreateCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_dim", schema.VectorDim()),
	)

	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	dim := schema.VectorDim()
	if dim <= 0 {
		return fmt.Errorf("%w: schema requires a vector field with positive dimension", ErrInvalidConfig)
	}

	if c.getCollection(name) != nil {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	meta := map[string]string{"vector_dim": strconv.Itoa(dim)}
	if description != "" {
		meta["description"] = description
	}
	if _, err := c.db.CreateCollection(name, meta, stubEmbeddingFunc()); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("%w: %s", ErrCollectionExists, name)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	c.mu.Lock()
	c.dims[name] = dim
	c.saveDims()
	c.mu.Unlock()
	span.SetStatus(codes.Ok, "success")
	return nil
}

// CreateIndex is a no-op: chromem always searches exhaustively.
func (c *ChromemClient) CreateIndex(ctx context.Context, collection, field, indexType, metricType string, params map[string]any) error {
	return ValidateCollectionName(collection)
}

// Insert upserts records into a collection.
func (c *ChromemClient) Insert(ctx context.Context, collection string, records []Record) (*InsertResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemClient.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("record_count", len(records)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyRecords
	}

	col := c.getCollection(collection)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	docs := make([]chromem.Document, len(records))
	ids := make([]int64, len(records))
	for i, rec := range records {
		id := rec.ID
		if id == 0 {
			id = NewRecordID()
		}
		ids[i] = id

		meta := attributesToStrings(rec.Attributes)
		meta["text"] = rec.Text
		docs[i] = chromem.Document{
			ID:        strconv.FormatInt(id, 10),
			Content:   rec.Text,
			Metadata:  meta,
			Embedding: rec.Embedding,
		}
	}

	// Concurrency of 1: embeddings are already present, nothing to parallelize.
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("inserting into collection %s: %w", collection, err)
	}

	span.SetAttributes(attribute.Int("records_added", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return &InsertResult{InsertedCount: len(ids), IDs: ids}, nil
}

// Search performs a similarity search with in-process filter evaluation.
func (c *ChromemClient) Search(ctx context.Context, collection string, vector []float32, limit int, filters []Filter) ([]Hit, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemClient.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("limit", limit),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	col := c.getCollection(collection)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	count := col.Count()
	if count == 0 {
		return []Hit{}, nil
	}

	// Exact-match filters push down to chromem's where clause; the rest are
	// applied after the query, so fetch everything and truncate afterward.
	where := make(map[string]string)
	var residual []Filter
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if f.Operator == OpEq {
			where[f.Field] = stringValue(f.Value)
			continue
		}
		residual = append(residual, f)
	}

	fetch := limit
	if len(residual) > 0 || fetch > count {
		fetch = count
	}

	results, err := col.QueryEmbedding(ctx, vector, fetch, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		attrs := stringsToAttributes(r.Metadata)
		if len(residual) > 0 && !Matches(attrs, residual) {
			continue
		}
		id, _ := strconv.ParseInt(r.ID, 10, 64)
		text := r.Content
		delete(attrs, "text")
		hits = append(hits, Hit{
			ID:         id,
			Text:       text,
			Attributes: attrs,
			Embedding:  r.Embedding,
			Score:      r.Similarity,
		})
		if len(hits) == limit {
			break
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// Delete removes records matching the filters and returns the deleted count.
func (c *ChromemClient) Delete(ctx context.Context, collection string, filters []Filter) (int64, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemClient.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, fmt.Errorf("%w: delete requires at least one filter", ErrInvalidFilter)
	}

	col := c.getCollection(collection)
	if col == nil {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	where := make(map[string]string)
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return 0, err
		}
		if f.Operator != OpEq {
			return 0, fmt.Errorf("%w: chromem delete supports only exact-match filters, got %q", ErrInvalidFilter, f.Operator)
		}
		where[f.Field] = stringValue(f.Value)
	}

	before := col.Count()
	if err := col.Delete(ctx, where, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting from collection %s: %w", collection, err)
	}
	deleted := int64(before - col.Count())

	span.SetAttributes(attribute.Int64("deleted_count", deleted))
	span.SetStatus(codes.Ok, "success")
	return deleted, nil
}

// ListCollections returns all collection names.
func (c *ChromemClient) ListCollections(ctx context.Context) ([]string, error) {
	collections := c.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	return names, nil
}

// DropCollection deletes a collection and all its records.
func (c *ChromemClient) DropCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := c.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	c.mu.Lock()
	delete(c.dims, name)
	c.saveDims()
	c.mu.Unlock()
	c.loaded.Delete(name)
	return nil
}

// LoadCollection marks a collection as loaded; chromem is always in memory.
func (c *ChromemClient) LoadCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if c.getCollection(name) == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	c.loaded.Store(name, true)
	return nil
}

// ReleaseCollection marks a collection as released.
func (c *ChromemClient) ReleaseCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	c.loaded.Delete(name)
	return nil
}

// GetLoadProgress reports 100 for loaded collections and 0 otherwise.
func (c *ChromemClient) GetLoadProgress(ctx context.Context, name string) (int, error) {
	if err := ValidateCollectionName(name); err != nil {
		return 0, err
	}
	if _, ok := c.loaded.Load(name); ok {
		return 100, nil
	}
	return 0, nil
}

// DescribeCollection returns the tracked description of a collection.
func (c *ChromemClient) DescribeCollection(ctx context.Context, name string) (*CollectionDescription, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if c.getCollection(name) == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	c.mu.Lock()
	dim := c.dims[name]
	c.mu.Unlock()
	return &CollectionDescription{Name: name, VectorDim: dim, MetricType: "cosine"}, nil
}

// GetStatistics returns the number of records in a collection.
func (c *ChromemClient) GetStatistics(ctx context.Context, name string) (*CollectionStats, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	col := c.getCollection(name)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return &CollectionStats{RowCount: int64(col.Count())}, nil
}

// Close closes the client. chromem persists on write; nothing to flush.
func (c *ChromemClient) Close() error {
	return nil
}

// attributesToStrings flattens schemaless attributes to chromem's string map.
func attributesToStrings(attrs map[string]any) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		out[k] = stringValue(v)
	}
	return out
}

// stringsToAttributes widens chromem's string map back to attributes.
func stringsToAttributes(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// Ensure ChromemClient implements Client.
var _ Client = (*ChromemClient)(nil)
