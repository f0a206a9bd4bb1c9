package vectordb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("enterprise-rag-chatbot.vectordb.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC adapter.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string `koanf:"host"`

	// Port is the Qdrant gRPC port (6334, not the 6333 HTTP port).
	Port int `koanf:"port"`

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`

	// MaxRetries is the maximum number of retry attempts for transient failures.
	// Default: 3
	MaxRetries int `koanf:"max_retries"`

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry (exponential backoff). Default: 1 second
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// RequestTimeout bounds each individual remote attempt. Default: 10 seconds
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// MaxMessageSize is the maximum gRPC message size in bytes. Default: 50MB
	MaxMessageSize int `koanf:"max_message_size"`

	// CircuitBreakerThreshold is the number of consecutive failures before
	// the circuit opens. Default: 5
	CircuitBreakerThreshold int `koanf:"circuit_breaker_threshold"`
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts and temporary unavailability, false for
// invalid arguments, not found and permission errors.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantClient implements Client over Qdrant's native gRPC transport.
//
// Qdrant serves collections without an explicit load step, so LoadCollection
// and ReleaseCollection keep local bookkeeping to honor the contract's state
// machine; GetLoadProgress reports 100 for loaded collections.
type QdrantClient struct {
	client *qdrant.Client
	config QdrantConfig

	loaded sync.Map

	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantClient creates a QdrantClient, connects and health-checks it.
func NewQdrantClient(config QdrantConfig) (*QdrantClient, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c := &QdrantClient{client: client, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check failed: %v", ErrConnectionFailed, err)
	}

	return c, nil
}

// Close closes the gRPC connection.
func (c *QdrantClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// retryOperation retries an operation with exponential backoff and a
// per-attempt timeout.
func (c *QdrantClient) retryOperation(ctx context.Context, operationName string, operation func(ctx context.Context) error) error {
	backoff := c.config.RetryBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		err := operation(attemptCtx)
		cancel()
		if err == nil {
			c.resetCircuitBreaker()
			return nil
		}

		if c.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		c.recordFailure()

		if attempt == c.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, c.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (c *QdrantClient) recordFailure() {
	c.circuitBreaker.mu.Lock()
	defer c.circuitBreaker.mu.Unlock()
	c.circuitBreaker.failures++
	c.circuitBreaker.lastFail = time.Now()
}

func (c *QdrantClient) resetCircuitBreaker() {
	c.circuitBreaker.mu.Lock()
	defer c.circuitBreaker.mu.Unlock()
	c.circuitBreaker.failures = 0
}

func (c *QdrantClient) isCircuitOpen() bool {
	c.circuitBreaker.mu.Lock()
	defer c.circuitBreaker.mu.Unlock()

	if c.circuitBreaker.failures >= c.config.CircuitBreakerThreshold {
		// Allow retry after 30 seconds
		if time.Since(c.circuitBreaker.lastFail) > 30*time.Second {
			c.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// HasCollection reports whether the named collection exists.
func (c *QdrantClient) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.HasCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	var exists bool
	err := c.retryOperation(ctx, "has_collection", func(ctx context.Context) error {
		info, err := c.client.GetCollectionInfo(ctx, name)
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}

	span.SetStatus(codes.Ok, "success")
	return exists, nil
}

// CreateCollection provisions a collection with the schema's vector dimension.
func (c *QdrantClient) CreateCollection(ctx context.Context, name string, schema Schema, description string) error {
	ctx, span := tracer.Start(ctx, "QdrantClient.CreateCollection")
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

	exists, err := c.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	err = c.retryOperation(ctx, "create_collection", func(ctx context.Context) error {
		return c.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// CreateIndex builds an index over a field.
//
// Qdrant builds the vector index as part of collection creation, so indexing
// the vector field is a no-op here. Attribute fields get a keyword payload
// index to speed up exact-match filtering.
func (c *QdrantClient) CreateIndex(ctx context.Context, collection, field, indexType, metricType string, params map[string]any) error {
	ctx, span := tracer.Start(ctx, "QdrantClient.CreateIndex")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("field", field),
		attribute.String("index_type", indexType),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if field == "embedding" {
		span.SetStatus(codes.Ok, "vector index configured at collection creation")
		return nil
	}

	err := c.retryOperation(ctx, "create_index", func(ctx context.Context) error {
		_, err := c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating index on %s.%s: %w", collection, field, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// NewRecordID generates a positive int64 record identifier from random UUID
// bytes. Used when the caller does not provide one.
func NewRecordID() int64 {
	id := uuid.New()
	n := int64(binary.BigEndian.Uint64(id[:8]) &^ (1 << 63))
	if n == 0 {
		n = 1
	}
	return n
}

// Insert upserts records into a collection.
func (c *QdrantClient) Insert(ctx context.Context, collection string, records []Record) (*InsertResult, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.Insert")
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

	points := make([]*qdrant.PointStruct, len(records))
	ids := make([]int64, len(records))
	for i, rec := range records {
		id := rec.ID
		if id == 0 {
			id = NewRecordID()
		}
		ids[i] = id

		payload := map[string]*qdrant.Value{
			"text": {Kind: &qdrant.Value_StringValue{StringValue: rec.Text}},
			"id":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: id}},
		}
		for k, v := range rec.Attributes {
			switch val := v.(type) {
			case string:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
			case int:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
			case int64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
			case float64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
			case bool:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
			default:
				// Complex values survive as JSON strings.
				raw, err := json.Marshal(val)
				if err != nil {
					continue
				}
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: string(raw)}}
			}
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(id)),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: payload,
		}
	}

	err := c.retryOperation(ctx, "upsert", func(ctx context.Context) error {
		_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upserting points to collection %s: %w", collection, err)
	}

	span.SetAttributes(attribute.Int("points_added", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return &InsertResult{InsertedCount: len(ids), IDs: ids}, nil
}

// Search performs a top-limit similarity search with optional filters.
func (c *QdrantClient) Search(ctx context.Context, collection string, vector []float32, limit int, filters []Filter) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.Search")
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
	const maxLimit = 10000
	if limit > maxLimit {
		limit = maxLimit
	}

	filter, err := compileQdrantFilter(filters)
	if err != nil {
		return nil, err
	}

	var results []*qdrant.ScoredPoint
	err = c.retryOperation(ctx, "search", func(ctx context.Context) error {
		res, err := c.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
			Filter:         filter,
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", collection, err)
	}

	hits := make([]Hit, len(results))
	for i, point := range results {
		hits[i] = pointToHit(point)
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

func pointToHit(point *qdrant.ScoredPoint) Hit {
	hit := Hit{Score: point.Score}

	if v := point.GetVectors(); v != nil {
		if vec := v.GetVector(); vec != nil {
			hit.Embedding = vec.GetData()
		}
	}

	if point.Payload != nil {
		hit.Attributes = make(map[string]any)
		for k, v := range point.Payload {
			switch val := v.Kind.(type) {
			case *qdrant.Value_StringValue:
				if k == "text" {
					hit.Text = val.StringValue
					continue
				}
				hit.Attributes[k] = val.StringValue
			case *qdrant.Value_IntegerValue:
				if k == "id" {
					hit.ID = val.IntegerValue
					continue
				}
				hit.Attributes[k] = val.IntegerValue
			case *qdrant.Value_DoubleValue:
				hit.Attributes[k] = val.DoubleValue
			case *qdrant.Value_BoolValue:
				hit.Attributes[k] = val.BoolValue
			}
		}
	}
	return hit
}

// compileQdrantFilter translates structured filter triples into a Qdrant
// filter. Equality and membership map to payload matches; ordering operators
// map to range conditions; "like" maps to full-text match.
func compileQdrantFilter(filters []Filter) (*qdrant.Filter, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	var must, mustNot []*qdrant.Condition
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}

		switch f.Operator {
		case OpEq:
			must = append(must, fieldCondition(f.Field, matchValue(f.Value)))
		case OpNe:
			mustNot = append(mustNot, fieldCondition(f.Field, matchValue(f.Value)))
		case OpLike:
			must = append(must, fieldCondition(f.Field, &qdrant.Match{
				MatchValue: &qdrant.Match_Text{Text: stringValue(f.Value)},
			}))
		case OpIn:
			var keywords []string
			for _, v := range inValues(f.Value) {
				keywords = append(keywords, stringValue(v))
			}
			must = append(must, fieldCondition(f.Field, &qdrant.Match{
				MatchValue: &qdrant.Match_Keywords{Keywords: &qdrant.RepeatedStrings{Strings: keywords}},
			}))
		case OpGt, OpGe, OpLt, OpLe:
			num, err := numericValue(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %q requires a numeric value: %v", ErrInvalidFilter, f.Operator, err)
			}
			r := &qdrant.Range{}
			switch f.Operator {
			case OpGt:
				r.Gt = qdrant.PtrOf(num)
			case OpGe:
				r.Gte = qdrant.PtrOf(num)
			case OpLt:
				r.Lt = qdrant.PtrOf(num)
			default:
				r.Lte = qdrant.PtrOf(num)
			}
			must = append(must, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{Key: f.Field, Range: r},
				},
			})
		}
	}

	return &qdrant.Filter{Must: must, MustNot: mustNot}, nil
}

func fieldCondition(key string, match *qdrant.Match) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: key, Match: match},
		},
	}
}

func matchValue(v any) *qdrant.Match {
	switch val := v.(type) {
	case int:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(val)}}
	case int64:
		return &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: val}}
	case bool:
		return &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: val}}
	default:
		return &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: stringValue(v)}}
	}
}

func numericValue(v any) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// Delete removes records matching the filters.
func (c *QdrantClient) Delete(ctx context.Context, collection string, filters []Filter) (int64, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	if len(filters) == 0 {
		return 0, fmt.Errorf("%w: delete requires at least one filter", ErrInvalidFilter)
	}

	filter, err := compileQdrantFilter(filters)
	if err != nil {
		return 0, err
	}

	// Qdrant does not report a deleted count; count matches beforehand.
	var matched int64
	countErr := c.retryOperation(ctx, "count_for_delete", func(ctx context.Context) error {
		n, err := c.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collection,
			Filter:         filter,
		})
		if err != nil {
			return err
		}
		matched = int64(n)
		return nil
	})
	if countErr != nil {
		span.RecordError(countErr)
		matched = -1
	}

	err = c.retryOperation(ctx, "delete", func(ctx context.Context) error {
		_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("deleting from collection %s: %w", collection, err)
	}

	span.SetAttributes(attribute.Int64("deleted_count", matched))
	span.SetStatus(codes.Ok, "success")
	return matched, nil
}

// ListCollections returns all collection names.
func (c *QdrantClient) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.ListCollections")
	defer span.End()

	var collections []string
	err := c.retryOperation(ctx, "list_collections", func(ctx context.Context) error {
		result, err := c.client.ListCollections(ctx)
		if err != nil {
			return err
		}
		collections = result
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	span.SetAttributes(attribute.Int("collection_count", len(collections)))
	span.SetStatus(codes.Ok, "success")
	return collections, nil
}

// DropCollection deletes a collection and all its records.
func (c *QdrantClient) DropCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "QdrantClient.DropCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	err := c.retryOperation(ctx, "drop_collection", func(ctx context.Context) error {
		return c.client.DeleteCollection(ctx, name)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}

	c.loaded.Delete(name)
	span.SetStatus(codes.Ok, "success")
	return nil
}

// LoadCollection marks a collection as loaded for serving.
func (c *QdrantClient) LoadCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	exists, err := c.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	c.loaded.Store(name, true)
	return nil
}

// ReleaseCollection marks a collection as released.
func (c *QdrantClient) ReleaseCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	c.loaded.Delete(name)
	return nil
}

// GetLoadProgress reports 100 for loaded collections and 0 otherwise.
func (c *QdrantClient) GetLoadProgress(ctx context.Context, name string) (int, error) {
	if err := ValidateCollectionName(name); err != nil {
		return 0, err
	}
	if _, ok := c.loaded.Load(name); ok {
		return 100, nil
	}
	return 0, nil
}

// DescribeCollection returns the remote description of a collection.
func (c *QdrantClient) DescribeCollection(ctx context.Context, name string) (*CollectionDescription, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.DescribeCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var desc *CollectionDescription
	err := c.retryOperation(ctx, "describe_collection", func(ctx context.Context) error {
		info, err := c.client.GetCollectionInfo(ctx, name)
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == grpccodes.NotFound {
				return ErrCollectionNotFound
			}
			return err
		}
		dim := 0
		if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
			dim = int(params.GetSize())
		}
		desc = &CollectionDescription{
			Name:       name,
			VectorDim:  dim,
			MetricType: "cosine",
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			span.SetStatus(codes.Error, "collection not found")
			return nil, ErrCollectionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("describing collection %s: %w", name, err)
	}

	span.SetStatus(codes.Ok, "success")
	return desc, nil
}

// GetStatistics returns the number of records in a collection.
func (c *QdrantClient) GetStatistics(ctx context.Context, name string) (*CollectionStats, error) {
	ctx, span := tracer.Start(ctx, "QdrantClient.GetStatistics")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var stats *CollectionStats
	err := c.retryOperation(ctx, "get_statistics", func(ctx context.Context) error {
		info, err := c.client.GetCollectionInfo(ctx, name)
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == grpccodes.NotFound {
				return ErrCollectionNotFound
			}
			return err
		}
		var count int64
		if info.PointsCount != nil {
			count = int64(*info.PointsCount)
		}
		stats = &CollectionStats{RowCount: count}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, ErrCollectionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("getting statistics for %s: %w", name, err)
	}

	span.SetAttributes(attribute.Int64("row_count", stats.RowCount))
	span.SetStatus(codes.Ok, "success")
	return stats, nil
}

// Ensure QdrantClient implements Client.
var _ Client = (*QdrantClient)(nil)
