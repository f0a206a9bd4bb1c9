// Package vectordb defines the contract for the external vector database.
//
// The core treats the vector database as a black box reachable through the
// Client interface. Two adapters are provided: a Qdrant gRPC adapter for
// production and an embedded chromem-go adapter for development and tests.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
)

// Sentinel errors for vector database operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid adapter configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrConnectionFailed indicates the remote database is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector database")

	// ErrInvalidRecord indicates a record that violates the collection schema.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyRecords indicates an insert with no records.
	ErrEmptyRecords = errors.New("empty or nil records")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against naming rules.
// Rejects uppercase, special characters, path traversal and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// FieldType identifies the storage type of a schema field.
type FieldType string

const (
	FieldTypeInt64       FieldType = "int64"
	FieldTypeFloatVector FieldType = "float_vector"
	FieldTypeVarChar     FieldType = "varchar"
	FieldTypeJSON        FieldType = "json"
)

// Field describes a single field in a collection schema.
type Field struct {
	// Name is the field identifier.
	Name string

	// Type is the storage type of the field.
	Type FieldType

	// Dim is the vector dimensionality. Only meaningful for FieldTypeFloatVector.
	Dim int

	// PrimaryKey marks the field as the collection's primary key.
	PrimaryKey bool

	// AutoID lets the database assign primary key values.
	AutoID bool
}

// Schema describes the fixed shape of a collection.
//
// Every collection provisioned by this system uses the same layout: an
// auto-assigned int64 primary key, a fixed-dimension vector field, a free-text
// field and a schemaless attribute field.
type Schema struct {
	Fields []Field
}

// StandardSchema returns the collection schema used across the system.
func StandardSchema(vectorDim int) Schema {
	return Schema{
		Fields: []Field{
			{Name: "id", Type: FieldTypeInt64, PrimaryKey: true, AutoID: true},
			{Name: "embedding", Type: FieldTypeFloatVector, Dim: vectorDim},
			{Name: "text", Type: FieldTypeVarChar},
			{Name: "attributes", Type: FieldTypeJSON},
		},
	}
}

// VectorDim returns the dimensionality of the schema's vector field, or 0
// if the schema has none.
func (s Schema) VectorDim() int {
	for _, f := range s.Fields {
		if f.Type == FieldTypeFloatVector {
			return f.Dim
		}
	}
	return 0
}

// Record is a single vector entry.
type Record struct {
	// ID is the record identifier. Zero means "assign one on insert".
	ID int64

	// Embedding is the dense vector. Its length must match the collection's
	// vector dimension.
	Embedding []float32

	// Text is the raw passage or serialized payload stored with the vector.
	Text string

	// Attributes holds schemaless metadata used for filtering.
	// It must not itself contain an "embedding" key.
	Attributes map[string]any
}

// Validate checks the record against the collection's vector dimension.
func (r Record) Validate(vectorDim int) error {
	if len(r.Embedding) != vectorDim {
		return fmt.Errorf("%w: embedding has %d dimensions, collection expects %d",
			ErrInvalidRecord, len(r.Embedding), vectorDim)
	}
	for i, v := range r.Embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: embedding component %d is not finite", ErrInvalidRecord, i)
		}
	}
	if _, ok := r.Attributes["embedding"]; ok {
		return fmt.Errorf("%w: attributes must not contain an %q key", ErrInvalidRecord, "embedding")
	}
	return nil
}

// InsertResult reports the outcome of an insert.
type InsertResult struct {
	InsertedCount int
	IDs           []int64
}

// Hit is a single similarity search match.
type Hit struct {
	ID         int64
	Text       string
	Attributes map[string]any

	// Embedding is the stored vector of the matched record, when the adapter
	// can return it. Used by embedding-based reranking strategies.
	Embedding []float32

	// Score is the similarity under the collection's metric; higher is better.
	Score float32
}

// CollectionDescription is the remote database's view of a collection.
type CollectionDescription struct {
	Name        string
	Description string
	VectorDim   int
	MetricType  string
}

// CollectionStats holds collection-level statistics.
type CollectionStats struct {
	RowCount int64
}

// Client is the boundary contract for the external vector database.
//
// Implementations must bound every remote call with a per-attempt timeout and
// a bounded retry count; a timed-out attempt surfaces as a hard failure to the
// caller instead of hanging.
type Client interface {
	// HasCollection reports whether the named collection exists remotely.
	HasCollection(ctx context.Context, name string) (bool, error)

	// CreateCollection provisions a collection with the given schema.
	// Creating a collection that already exists returns ErrCollectionExists.
	CreateCollection(ctx context.Context, name string, schema Schema, description string) error

	// CreateIndex builds a similarity or attribute index over a field.
	CreateIndex(ctx context.Context, collection, field, indexType, metricType string, params map[string]any) error

	// Insert upserts records and returns assigned IDs in input order.
	Insert(ctx context.Context, collection string, records []Record) (*InsertResult, error)

	// Search performs a top-limit similarity search. Filters, when present,
	// are compiled from {field, operator, value} triples by the adapter.
	Search(ctx context.Context, collection string, vector []float32, limit int, filters []Filter) ([]Hit, error)

	// Delete removes records matching the filters and returns the deleted count.
	Delete(ctx context.Context, collection string, filters []Filter) (int64, error)

	// ListCollections enumerates all collection names known to the database.
	ListCollections(ctx context.Context) ([]string, error)

	// DropCollection deletes a collection and all its records.
	DropCollection(ctx context.Context, name string) error

	// LoadCollection loads a collection into serving memory.
	LoadCollection(ctx context.Context, name string) error

	// ReleaseCollection evicts a collection from serving memory.
	ReleaseCollection(ctx context.Context, name string) error

	// GetLoadProgress reports load progress as a percentage (0-100).
	GetLoadProgress(ctx context.Context, name string) (int, error)

	// DescribeCollection returns the remote description of a collection.
	DescribeCollection(ctx context.Context, name string) (*CollectionDescription, error)

	// GetStatistics returns collection-level statistics.
	GetStatistics(ctx context.Context, name string) (*CollectionStats, error)

	// Close releases the connection and any held resources.
	Close() error
}
