// Package collections implements the collection store: the single point of
// truth for which vector collections exist and what their declared
// properties are.
//
// The vector database remains the system of record. The store keeps two
// TTL-bounded process-local mirrors of it, an existence cache and a metadata
// cache, over the registry of CollectionMetadata records, which is itself
// persisted inside the vector database as vector entries in a reserved
// collection.
package collections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/embeddings"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/vectordb"
)

const (
	// attrCollectionName is the attribute used as the registry's lookup key.
	attrCollectionName = "collection_name"

	// attrRecordType distinguishes registry records from user data.
	attrRecordType = "record_type"

	// recordTypeMetadata is the record_type value for metadata records.
	recordTypeMetadata = "collection_metadata"
)

// Config holds collection store configuration.
type Config struct {
	// ReservedCollection is the registry collection name. Not usable by
	// user collections.
	ReservedCollection string `koanf:"reserved_collection"`

	// ExistenceTTL bounds the age of existence cache entries.
	ExistenceTTL time.Duration `koanf:"existence_ttl"`

	// MetadataTTL bounds the age of cached registry reads.
	MetadataTTL time.Duration `koanf:"metadata_ttl"`

	// MetadataVectorDim is the dimension of the registry's pseudo-vectors.
	MetadataVectorDim int `koanf:"metadata_vector_dim"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ReservedCollection == "" {
		c.ReservedCollection = "rag_collection_registry"
	}
	if c.ExistenceTTL == 0 {
		c.ExistenceTTL = 30 * time.Second
	}
	if c.MetadataTTL == 0 {
		c.MetadataTTL = 30 * time.Second
	}
	if c.MetadataVectorDim == 0 {
		c.MetadataVectorDim = 64
	}
}

// Option configures a Store.
type Option func(*Store)

// WithClock substitutes the time source. Tests use this to expire cache
// entries without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns collection lifecycle and metadata on top of a vectordb.Client.
//
// All mutable state (existence cache, registry bootstrap flag) is safe for
// concurrent use from simultaneous requests.
type Store struct {
	db       vectordb.Client
	embedder embeddings.Embedder
	logger   *zap.Logger
	config   Config
	cache    *existenceCache
	mdCache  *metadataCache
	now      func() time.Time

	registryMu    sync.Mutex
	registryReady bool
}

// NewStore creates a collection store over the given vector database client.
//
// Registry records need a vector slot but are looked up by attribute filter,
// so their embeddings come from the deterministic character-code embedder
// rather than the real embedding API.
func NewStore(db vectordb.Client, logger *zap.Logger, config Config, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: vector database client required", ErrValidation)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := vectordb.ValidateCollectionName(config.ReservedCollection); err != nil {
		return nil, fmt.Errorf("%w: reserved collection: %v", ErrValidation, err)
	}

	embedder, err := embeddings.NewDeterministic(config.MetadataVectorDim)
	if err != nil {
		return nil, fmt.Errorf("creating registry embedder: %w", err)
	}

	s := &Store{
		db:       db,
		embedder: embedder,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = newExistenceCache(config.ExistenceTTL, s.now)
	s.mdCache = newMetadataCache(config.MetadataTTL, s.now)
	return s, nil
}

// ReservedCollection returns the registry collection name.
func (s *Store) ReservedCollection() string {
	return s.config.ReservedCollection
}

// remoteErr classifies a vector database error into the store taxonomy.
func remoteErr(op string, err error) error {
	switch {
	case errors.Is(err, vectordb.ErrCollectionNotFound):
		return fmt.Errorf("%w: %s: %v", ErrNotFound, op, err)
	case errors.Is(err, vectordb.ErrInvalidCollectionName), errors.Is(err, vectordb.ErrInvalidRecord), errors.Is(err, vectordb.ErrInvalidFilter):
		return fmt.Errorf("%w: %s: %v", ErrValidation, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, op, err)
	}
}

// Exists reports whether the named collection exists.
//
// A fresh cache entry answers without a remote call. On a miss the remote is
// consulted (the adapter retries with backoff) and the cache refreshed. If
// the remote fails and a stale entry is present, the stale value is returned
// and the degradation logged; with no entry at all the error propagates, so
// callers never mistake "unknown" for "false".
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := vectordb.ValidateCollectionName(name); err != nil {
		return false, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if exists, ok := s.cache.get(name); ok {
		return exists, nil
	}

	exists, err := s.db.HasCollection(ctx, name)
	if err != nil {
		if stale, ok := s.cache.getStale(name); ok {
			s.logger.Warn("existence check degraded to stale cache",
				zap.String("collection", name),
				zap.Bool("stale_value", stale),
				zap.Error(err),
			)
			return stale, nil
		}
		return false, remoteErr("checking existence", err)
	}

	s.cache.put(name, exists)
	return exists, nil
}

// EnsureExists idempotently provisions a collection with the standard schema
// and a cosine similarity index over the vector field.
//
// A failed create or index build surfaces as ErrProvision and leaves the
// cache unset, so nothing observes a half-created collection as existing.
// "Already exists" from the remote is success: duplicate-creation races are
// tolerated rather than locked against.
func (s *Store) EnsureExists(ctx context.Context, name string, vectorDim int) error {
	if err := vectordb.ValidateCollectionName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if name == s.config.ReservedCollection {
		return fmt.Errorf("%w: %q is reserved for the metadata registry", ErrValidation, name)
	}
	if vectorDim <= 0 {
		return fmt.Errorf("%w: vector dimension must be positive", ErrValidation)
	}

	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return s.ensureMetadata(ctx, name, vectorDim)
	}

	err = s.db.CreateCollection(ctx, name, vectordb.StandardSchema(vectorDim), "")
	if err != nil && !errors.Is(err, vectordb.ErrCollectionExists) {
		return fmt.Errorf("%w: creating %s: %v", ErrProvision, name, err)
	}

	if err := s.db.CreateIndex(ctx, name, "embedding", "HNSW", "COSINE", nil); err != nil {
		return fmt.Errorf("%w: indexing %s: %v", ErrProvision, name, err)
	}

	s.cache.put(name, true)
	return s.ensureMetadata(ctx, name, vectorDim)
}

// ensureMetadata guarantees a registry record exists for the collection.
// Registry write failures are logged, not fatal: auto-registration during
// List heals the gap.
func (s *Store) ensureMetadata(ctx context.Context, name string, vectorDim int) error {
	_, err := s.GetMetadata(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	now := s.now().UTC()
	md := CollectionMetadata{
		Name:      name,
		VectorDim: vectorDim,
		Status:    StatusUnloaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.persistMetadata(ctx, md); err != nil {
		s.logger.Warn("failed to persist collection metadata",
			zap.String("collection", name),
			zap.Error(err),
		)
	}
	return nil
}

// ensureRegistry bootstraps the reserved metadata collection on first use.
func (s *Store) ensureRegistry(ctx context.Context) error {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	if s.registryReady {
		return nil
	}

	reserved := s.config.ReservedCollection
	exists, err := s.db.HasCollection(ctx, reserved)
	if err != nil {
		return remoteErr("checking registry", err)
	}
	if !exists {
		err := s.db.CreateCollection(ctx, reserved, vectordb.StandardSchema(s.config.MetadataVectorDim), "collection metadata registry")
		if err != nil && !errors.Is(err, vectordb.ErrCollectionExists) {
			return fmt.Errorf("%w: creating registry: %v", ErrProvision, err)
		}
		if err := s.db.CreateIndex(ctx, reserved, "embedding", "HNSW", "COSINE", nil); err != nil {
			return fmt.Errorf("%w: indexing registry: %v", ErrProvision, err)
		}
	}
	if err := s.db.LoadCollection(ctx, reserved); err != nil {
		return remoteErr("loading registry", err)
	}

	s.registryReady = true
	return nil
}

// metadataFilters selects the unique registry record for a collection.
func metadataFilters(name string) []vectordb.Filter {
	return []vectordb.Filter{
		vectordb.Eq(attrCollectionName, name),
		vectordb.Eq(attrRecordType, recordTypeMetadata),
	}
}

// persistMetadata writes a registry record. The collection name is embedded
// as a pseudo-query vector; similarity plays no part in retrieval, only the
// exact-match attribute filter does.
func (s *Store) persistMetadata(ctx context.Context, md CollectionMetadata) error {
	if err := s.ensureRegistry(ctx); err != nil {
		return err
	}

	vector, err := s.embedder.EmbedQuery(ctx, md.Name)
	if err != nil {
		return fmt.Errorf("embedding registry key: %w", err)
	}

	payload, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("serializing metadata: %w", err)
	}

	record := vectordb.Record{
		Embedding: vector,
		Text:      string(payload),
		Attributes: map[string]any{
			attrCollectionName: md.Name,
			attrRecordType:     recordTypeMetadata,
		},
	}
	if _, err := s.db.Insert(ctx, s.config.ReservedCollection, []vectordb.Record{record}); err != nil {
		return remoteErr("persisting metadata", err)
	}
	s.mdCache.put(md)
	return nil
}

// CreateMetadata persists a new registry record for a collection.
func (s *Store) CreateMetadata(ctx context.Context, md CollectionMetadata) error {
	md.Tags = normalizeTags(md.Tags)
	if md.Status == "" {
		md.Status = StatusUnloaded
	}
	now := s.now().UTC()
	if md.CreatedAt.IsZero() {
		md.CreatedAt = now
	}
	md.UpdatedAt = now

	if err := md.Validate(); err != nil {
		return err
	}
	if err := vectordb.ValidateCollectionName(md.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if md.Name == s.config.ReservedCollection {
		return fmt.Errorf("%w: %q is reserved for the metadata registry", ErrValidation, md.Name)
	}

	if _, err := s.GetMetadata(ctx, md.Name); err == nil {
		return fmt.Errorf("%w: metadata for %s already exists", ErrValidation, md.Name)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	return s.persistMetadata(ctx, md)
}

// GetMetadata returns the registry record for a collection.
//
// Lookup reuses the search primitive as a keyed read: the collection name is
// embedded as a pseudo-query vector and the exact-match attribute filter
// selects the unique record.
func (s *Store) GetMetadata(ctx context.Context, name string) (*CollectionMetadata, error) {
	if err := vectordb.ValidateCollectionName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if md, ok := s.mdCache.get(name); ok {
		return &md, nil
	}
	if err := s.ensureRegistry(ctx); err != nil {
		return nil, err
	}

	vector, err := s.embedder.EmbedQuery(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("embedding registry key: %w", err)
	}

	hits, err := s.db.Search(ctx, s.config.ReservedCollection, vector, 1, metadataFilters(name))
	if err != nil {
		return nil, remoteErr("reading metadata", err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: metadata for collection %s", ErrNotFound, name)
	}

	var md CollectionMetadata
	if err := json.Unmarshal([]byte(hits[0].Text), &md); err != nil {
		return nil, fmt.Errorf("deserializing metadata for %s: %w", name, err)
	}
	s.mdCache.put(md)
	return &md, nil
}

// UpdateMetadata applies a partial update to a registry record. Name and
// VectorDim are immutable; only tags, description and status change.
func (s *Store) UpdateMetadata(ctx context.Context, name string, update MetadataUpdate) (*CollectionMetadata, error) {
	md, err := s.GetMetadata(ctx, name)
	if err != nil {
		return nil, err
	}

	orig := *md

	if update.Tags != nil {
		md.Tags = normalizeTags(*update.Tags)
	}
	if update.Description != nil {
		md.Description = *update.Description
	}
	if update.Status != nil {
		md.Status = *update.Status
	}
	md.UpdatedAt = s.now().UTC()

	if err := md.Validate(); err != nil {
		return nil, err
	}

	// The registry has no in-place update, so the record is replaced by a
	// delete followed by an insert. If the insert fails the original record
	// is re-inserted so the registry never loses tags or description; any
	// gap that survives the restore is healed by List auto-registration.
	if err := s.deleteMetadataRecord(ctx, name); err != nil {
		return nil, err
	}
	if err := s.persistMetadata(ctx, *md); err != nil {
		if restoreErr := s.persistMetadata(ctx, orig); restoreErr != nil {
			s.logger.Warn("could not restore metadata after failed update",
				zap.String("collection", name),
				zap.Error(restoreErr),
			)
		}
		return nil, err
	}
	return md, nil
}

// deleteMetadataRecord removes the registry record for a collection.
func (s *Store) deleteMetadataRecord(ctx context.Context, name string) error {
	if err := s.ensureRegistry(ctx); err != nil {
		return err
	}
	if _, err := s.db.Delete(ctx, s.config.ReservedCollection, metadataFilters(name)); err != nil {
		return remoteErr("deleting metadata", err)
	}
	s.mdCache.invalidate(name)
	return nil
}

// DeleteMetadata removes the registry record for a collection.
func (s *Store) DeleteMetadata(ctx context.Context, name string) error {
	if err := vectordb.ValidateCollectionName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.deleteMetadataRecord(ctx, name)
}

// Delete drops a collection and its registry record together, so no orphaned
// metadata survives, and purges the existence cache entry.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := vectordb.ValidateCollectionName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if name == s.config.ReservedCollection {
		return fmt.Errorf("%w: cannot delete the metadata registry", ErrValidation)
	}

	if err := s.db.DropCollection(ctx, name); err != nil && !errors.Is(err, vectordb.ErrCollectionNotFound) {
		return remoteErr("dropping collection", err)
	}
	if err := s.deleteMetadataRecord(ctx, name); err != nil {
		return err
	}
	s.cache.invalidate(name)
	return nil
}

// List enumerates all collections known to the vector database, excluding
// the reserved registry collection.
//
// Collections without a registry record get one synthesized on the spot,
// tagged auto-registered, and persisted. This keeps what the database has
// and what the application believes exists from drifting apart.
func (s *Store) List(ctx context.Context) ([]CollectionMetadata, error) {
	names, err := s.db.ListCollections(ctx)
	if err != nil {
		return nil, remoteErr("listing collections", err)
	}

	out := make([]CollectionMetadata, 0, len(names))
	for _, name := range names {
		if name == s.config.ReservedCollection {
			continue
		}

		md, err := s.GetMetadata(ctx, name)
		if err == nil {
			out = append(out, *md)
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("skipping collection with unreadable metadata",
				zap.String("collection", name),
				zap.Error(err),
			)
			continue
		}

		synthesized := s.autoRegister(ctx, name)
		out = append(out, synthesized)
	}
	return out, nil
}

// autoRegister synthesizes and persists metadata for a collection discovered
// in the database without a registry record.
func (s *Store) autoRegister(ctx context.Context, name string) CollectionMetadata {
	dim := 0
	if desc, err := s.db.DescribeCollection(ctx, name); err == nil {
		dim = desc.VectorDim
	} else {
		s.logger.Warn("could not describe collection during auto-registration",
			zap.String("collection", name),
			zap.Error(err),
		)
	}

	now := s.now().UTC()
	md := CollectionMetadata{
		Name:      name,
		Tags:      []string{TagAutoRegistered},
		VectorDim: dim,
		Status:    StatusUnloaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.persistMetadata(ctx, md); err != nil {
		s.logger.Warn("failed to persist auto-registered metadata",
			zap.String("collection", name),
			zap.Error(err),
		)
	} else {
		s.logger.Info("auto-registered collection",
			zap.String("collection", name),
			zap.Int("vector_dim", dim),
		)
	}
	return md
}

// Load loads a collection into serving memory and records the transition.
func (s *Store) Load(ctx context.Context, name string) error {
	if err := s.db.LoadCollection(ctx, name); err != nil {
		return remoteErr("loading collection", err)
	}
	s.setStatus(ctx, name, StatusLoaded)
	return nil
}

// Unload evicts a collection from serving memory and records the transition.
func (s *Store) Unload(ctx context.Context, name string) error {
	if err := s.db.ReleaseCollection(ctx, name); err != nil {
		return remoteErr("releasing collection", err)
	}
	s.setStatus(ctx, name, StatusUnloaded)
	return nil
}

// setStatus records a load-state transition in the registry. Best effort:
// serving state lives in the database, the registry just mirrors it.
func (s *Store) setStatus(ctx context.Context, name string, status Status) {
	if _, err := s.UpdateMetadata(ctx, name, MetadataUpdate{Status: &status}); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("failed to record load-state transition",
			zap.String("collection", name),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// IsLoaded reports whether a collection is fully loaded for serving.
func (s *Store) IsLoaded(ctx context.Context, name string) (bool, error) {
	progress, err := s.db.GetLoadProgress(ctx, name)
	if err != nil {
		return false, remoteErr("checking load progress", err)
	}
	return progress >= 100, nil
}

// EnsureLoaded loads the collection if it is not already serving. Called
// before every search and insert.
func (s *Store) EnsureLoaded(ctx context.Context, name string) error {
	loaded, err := s.IsLoaded(ctx, name)
	if err != nil {
		return err
	}
	if loaded {
		return nil
	}
	return s.Load(ctx, name)
}

// Search runs a similarity search against a collection, loading it first.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]vectordb.Hit, error) {
	if err := s.EnsureLoaded(ctx, collection); err != nil {
		return nil, err
	}
	hits, err := s.db.Search(ctx, collection, vector, limit, nil)
	if err != nil {
		return nil, remoteErr("searching", err)
	}
	return hits, nil
}

// Insert validates records against the collection's declared dimension,
// loads the collection and inserts.
func (s *Store) Insert(ctx context.Context, collection string, records []vectordb.Record) (*vectordb.InsertResult, error) {
	dim := s.vectorDim(ctx, collection)
	if dim > 0 {
		for i, rec := range records {
			if err := rec.Validate(dim); err != nil {
				return nil, fmt.Errorf("%w: record %d: %v", ErrValidation, i, err)
			}
		}
	}

	if err := s.EnsureLoaded(ctx, collection); err != nil {
		return nil, err
	}
	res, err := s.db.Insert(ctx, collection, records)
	if err != nil {
		return nil, remoteErr("inserting", err)
	}
	return res, nil
}

// vectorDim resolves a collection's dimension from the registry, falling
// back to the remote description.
func (s *Store) vectorDim(ctx context.Context, collection string) int {
	if md, err := s.GetMetadata(ctx, collection); err == nil && md.VectorDim > 0 {
		return md.VectorDim
	}
	if desc, err := s.db.DescribeCollection(ctx, collection); err == nil {
		return desc.VectorDim
	}
	return 0
}

// Describe returns the remote description and statistics for a collection.
func (s *Store) Describe(ctx context.Context, name string) (*vectordb.CollectionDescription, *vectordb.CollectionStats, error) {
	desc, err := s.db.DescribeCollection(ctx, name)
	if err != nil {
		return nil, nil, remoteErr("describing collection", err)
	}
	stats, err := s.db.GetStatistics(ctx, name)
	if err != nil {
		return nil, nil, remoteErr("reading statistics", err)
	}
	return desc, stats, nil
}
