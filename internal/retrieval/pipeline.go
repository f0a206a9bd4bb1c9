// Package retrieval implements the multi-stage query pipeline: embedding
// based retrieval, multi-strategy reranking, context-window assembly and
// grounded answer generation, plus the document ingestion path that feeds
// it.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/chunker"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/embeddings"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/reranker"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/vectordb"
)

const tracerName = "enterprise-rag-chatbot.retrieval"

// Sentinel errors for the retrieval pipeline.
var (
	// ErrNoCollections indicates a multi-collection query named no collections.
	ErrNoCollections = errors.New("no collections to query")

	// ErrAllCollectionsFailed indicates every collection in a multi-collection
	// query failed.
	ErrAllCollectionsFailed = errors.New("all collections failed")

	// ErrEmptyDocument indicates an ingested document with no text.
	ErrEmptyDocument = errors.New("document has no text")
)

// SearchResult is a retrieved passage with its provenance.
type SearchResult struct {
	ID         int64
	Text       string
	Attributes map[string]any
	Embedding  []float32
	Score      float32
	Collection string
}

// Document is a unit of ingestion: raw text plus caller metadata attached to
// every chunk.
type Document struct {
	Text     string
	Metadata map[string]any
}

// CollectionStore is the subset of the collection store the pipeline needs.
type CollectionStore interface {
	EnsureExists(ctx context.Context, name string, vectorDim int) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]vectordb.Hit, error)
	Insert(ctx context.Context, collection string, records []vectordb.Record) (*vectordb.InsertResult, error)
}

// Config holds retrieval pipeline configuration.
type Config struct {
	// TopK is the default result count per query.
	TopK int `koanf:"top_k"`

	// MaxConcurrency bounds parallel per-collection searches and per-document
	// ingestion.
	MaxConcurrency int `koanf:"max_concurrency"`

	// MaxContextChars is the context window budget in characters.
	MaxContextChars int `koanf:"max_context_chars"`

	// Chunking configures the document splitter.
	Chunking chunker.Config `koanf:"chunking"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.MaxContextChars == 0 {
		c.MaxContextChars = 8000
	}
	c.Chunking.ApplyDefaults()
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.TopK < 0 || c.MaxConcurrency < 0 || c.MaxContextChars < 0 {
		return errors.New("retrieval limits cannot be negative")
	}
	return c.Chunking.Validate()
}

// Pipeline turns questions into ranked passages and documents into stored
// chunks.
type Pipeline struct {
	store    CollectionStore
	embedder embeddings.Embedder
	strategy reranker.Strategy
	logger   *zap.Logger
	config   Config
}

// NewPipeline creates a retrieval pipeline. The reranking strategy may be
// nil, in which case retrieval order is used as-is.
func NewPipeline(store CollectionStore, embedder embeddings.Embedder, strategy reranker.Strategy, logger *zap.Logger, config Config) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("collection store required")
	}
	if embedder == nil {
		return nil, errors.New("embedder required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		strategy: strategy,
		logger:   logger,
		config:   config,
	}, nil
}

// EmbedderDimension returns the vector dimension of the configured embedder.
func (p *Pipeline) EmbedderDimension() int {
	return p.embedder.Dimension()
}

// Query embeds the question and returns the top topK passages from one
// collection, ordered by similarity score descending.
func (p *Pipeline) Query(ctx context.Context, question, collection string, topK int) ([]SearchResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retrieval.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	if topK <= 0 {
		topK = p.config.TopK
	}

	vector, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results, err := p.search(ctx, collection, vector, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	return results, nil
}

// QueryMultiple embeds the question once and searches every collection
// independently with bounded concurrency.
//
// A failing collection is skipped with a warning, not fatal to the overall
// query; only when every collection fails does an error surface. Merged
// results are ordered by score descending and truncated to globalTopK, so
// the caller's ordering never depends on call completion order.
func (p *Pipeline) QueryMultiple(ctx context.Context, question string, collections []string, topKPerCollection, globalTopK int) ([]SearchResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retrieval.QueryMultiple")
	defer span.End()
	span.SetAttributes(attribute.Int("collections", len(collections)))

	if len(collections) == 0 {
		return nil, ErrNoCollections
	}
	if topKPerCollection <= 0 {
		topKPerCollection = p.config.TopK
	}
	if globalTopK <= 0 {
		globalTopK = p.config.TopK
	}

	vector, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	return p.searchMany(ctx, vector, collections, topKPerCollection, globalTopK)
}

// searchMany fans a pre-embedded query out across collections.
func (p *Pipeline) searchMany(ctx context.Context, vector []float32, collections []string, topKPerCollection, globalTopK int) ([]SearchResult, error) {
	var (
		mu       sync.Mutex
		merged   []SearchResult
		failures int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrency)
	for _, collection := range collections {
		g.Go(func() error {
			results, err := p.search(gctx, collection, vector, topKPerCollection)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				p.logger.Warn("skipping failed collection in multi-collection query",
					zap.String("collection", collection),
					zap.Error(err),
				)
				return nil
			}
			merged = append(merged, results...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if failures == len(collections) {
		return nil, fmt.Errorf("%w: %d collections", ErrAllCollectionsFailed, failures)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > globalTopK {
		merged = merged[:globalTopK]
	}
	return merged, nil
}

// search runs one similarity search and maps hits to results.
func (p *Pipeline) search(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	hits, err := p.store.Search(ctx, collection, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}
	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{
			ID:         h.ID,
			Text:       h.Text,
			Attributes: h.Attributes,
			Embedding:  h.Embedding,
			Score:      h.Score,
			Collection: collection,
		}
	}
	return results, nil
}

// Rerank applies the configured strategy to retrieved results, degrading to
// retrieval order on strategy failure.
func (p *Pipeline) Rerank(ctx context.Context, question string, queryEmbedding []float32, results []SearchResult, topK int) []SearchResult {
	if topK <= 0 {
		topK = p.config.TopK
	}

	docs := make([]reranker.Document, len(results))
	for i, r := range results {
		docs[i] = reranker.Document{
			ID:        fmt.Sprintf("%s/%d", r.Collection, r.ID),
			Text:      r.Text,
			Score:     r.Score,
			Embedding: r.Embedding,
		}
	}
	query := reranker.Query{Text: question, Embedding: queryEmbedding}
	ranked := reranker.Apply(ctx, p.logger, p.strategy, query, docs, topK)

	// Map back through the original results so attributes and provenance
	// survive reranking.
	byID := make(map[string]SearchResult, len(results))
	for _, r := range results {
		byID[fmt.Sprintf("%s/%d", r.Collection, r.ID)] = r
	}
	out := make([]SearchResult, 0, len(ranked))
	for _, d := range ranked {
		r := byID[d.ID]
		r.Score = d.Score
		out = append(out, r)
	}
	return out
}

// ProcessDocument chunks, embeds and stores one document. The collection is
// provisioned on first use with the embedder's dimension. Returns the number
// of chunks stored.
func (p *Pipeline) ProcessDocument(ctx context.Context, collection string, doc Document) (int, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retrieval.ProcessDocument")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if doc.Text == "" {
		return 0, ErrEmptyDocument
	}

	chunks, err := chunker.Split(doc.Text, p.config.Chunking)
	if err != nil {
		return 0, fmt.Errorf("chunking document: %w", err)
	}
	if len(chunks) == 0 {
		return 0, ErrEmptyDocument
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := p.store.EnsureExists(ctx, collection, p.embedder.Dimension()); err != nil {
		return 0, err
	}

	records := make([]vectordb.Record, len(chunks))
	for i, c := range chunks {
		attrs := make(map[string]any, len(doc.Metadata)+3)
		for k, v := range doc.Metadata {
			attrs[k] = v
		}
		attrs["chunk_id"] = c.ID
		attrs["chunk_index"] = c.SequenceIndex
		attrs["total_chunks"] = c.TotalChunks
		records[i] = vectordb.Record{
			Embedding:  vectors[i],
			Text:       c.Text,
			Attributes: attrs,
		}
	}

	res, err := p.store.Insert(ctx, collection, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return 0, err
	}

	p.logger.Info("document processed",
		zap.String("collection", collection),
		zap.Int("chunks", res.InsertedCount),
	)
	return res.InsertedCount, nil
}

// BatchResult summarizes a batch ingestion run.
type BatchResult struct {
	Processed int
	Failed    int
	Chunks    int
}

// ProcessBatch ingests documents with bounded concurrency. One document
// failing never aborts the others; failures are logged and counted.
func (p *Pipeline) ProcessBatch(ctx context.Context, collection string, docs []Document) BatchResult {
	var (
		mu  sync.Mutex
		res BatchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			n, err := p.ProcessDocument(gctx, collection, doc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				p.logger.Warn("document failed in batch",
					zap.String("collection", collection),
					zap.Int("document", i),
					zap.Error(err),
				)
				return nil
			}
			res.Processed++
			res.Chunks += n
			return nil
		})
	}
	// Workers swallow per-document errors, so Wait only fails on context
	// cancellation propagated through gctx.
	_ = g.Wait()
	return res
}
