// Package ingestion consumes document messages from the message queue and
// feeds them through the retrieval pipeline's ingestion path.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/retrieval"
)

// Sentinel errors for ingestion.
var (
	// ErrInvalidMessage indicates a malformed or incomplete queue message.
	ErrInvalidMessage = errors.New("invalid document message")

	// ErrUnsupportedMimeType indicates a document type the consumer cannot
	// extract text from.
	ErrUnsupportedMimeType = errors.New("unsupported document mime type")
)

// DocumentMessage is the queue payload that triggers ingestion of one
// document.
type DocumentMessage struct {
	DocumentLocation string    `json:"document_location"`
	DocumentMimeType string    `json:"document_mime_type"`
	TargetCollection string    `json:"target_collection"`
	Timestamp        time.Time `json:"timestamp"`
}

// Validate checks the message carries everything ingestion needs.
func (m DocumentMessage) Validate() error {
	if m.DocumentLocation == "" {
		return fmt.Errorf("%w: document location required", ErrInvalidMessage)
	}
	if m.TargetCollection == "" {
		return fmt.Errorf("%w: target collection required", ErrInvalidMessage)
	}
	return nil
}

// ObjectFetcher retrieves document bytes by location string.
type ObjectFetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FileFetcher reads documents from the local filesystem, optionally rooted
// at a base directory.
type FileFetcher struct {
	BaseDir string
}

func (f FileFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	path := location
	if f.BaseDir != "" {
		path = filepath.Join(f.BaseDir, location)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	return data, nil
}

// Ingestor is the pipeline surface the consumer drives.
type Ingestor interface {
	ProcessDocument(ctx context.Context, collection string, doc retrieval.Document) (int, error)
}

// Config holds ingestion consumer configuration.
type Config struct {
	// Subject is the queue subject carrying document messages.
	Subject string `koanf:"subject"`

	// QueueGroup spreads messages across consumer instances.
	QueueGroup string `koanf:"queue_group"`

	// HandleTimeout bounds processing of one message.
	HandleTimeout time.Duration `koanf:"handle_timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Subject == "" {
		c.Subject = "rag.documents"
	}
	if c.QueueGroup == "" {
		c.QueueGroup = "rag-ingestion"
	}
	if c.HandleTimeout == 0 {
		c.HandleTimeout = 2 * time.Minute
	}
}

// Consumer subscribes to document messages and ingests each referenced
// document. A failing document never takes the consumer down; the message
// is logged and dropped.
type Consumer struct {
	ingestor Ingestor
	fetcher  ObjectFetcher
	logger   *zap.Logger
	config   Config
	sub      *nats.Subscription
}

// NewConsumer creates an ingestion consumer.
func NewConsumer(ingestor Ingestor, fetcher ObjectFetcher, logger *zap.Logger, config Config) (*Consumer, error) {
	if ingestor == nil {
		return nil, errors.New("ingestor required")
	}
	if fetcher == nil {
		return nil, errors.New("object fetcher required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	return &Consumer{
		ingestor: ingestor,
		fetcher:  fetcher,
		logger:   logger,
		config:   config,
	}, nil
}

// Start subscribes to the configured subject as part of a queue group.
func (c *Consumer) Start(nc *nats.Conn) error {
	sub, err := nc.QueueSubscribe(c.config.Subject, c.config.QueueGroup, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.HandleTimeout)
		defer cancel()
		if err := c.Handle(ctx, msg.Data); err != nil {
			c.logger.Error("document message failed",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.config.Subject, err)
	}
	c.sub = sub
	c.logger.Info("ingestion consumer started",
		zap.String("subject", c.config.Subject),
		zap.String("queue_group", c.config.QueueGroup),
	)
	return nil
}

// Stop drains the subscription so in-flight messages finish.
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}

// Handle processes one raw queue message: decode, fetch, extract text,
// ingest into the target collection.
func (c *Consumer) Handle(ctx context.Context, data []byte) error {
	var msg DocumentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	raw, err := c.fetcher.Fetch(ctx, msg.DocumentLocation)
	if err != nil {
		return err
	}

	text, err := extractText(raw, msg.DocumentMimeType)
	if err != nil {
		return err
	}

	n, err := c.ingestor.ProcessDocument(ctx, msg.TargetCollection, retrieval.Document{
		Text: text,
		Metadata: map[string]any{
			"document_location": msg.DocumentLocation,
			"document_mime":     msg.DocumentMimeType,
			"ingested_at":       msg.Timestamp.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("processing %s: %w", msg.DocumentLocation, err)
	}

	c.logger.Info("document ingested",
		zap.String("location", msg.DocumentLocation),
		zap.String("collection", msg.TargetCollection),
		zap.Int("chunks", n),
	)
	return nil
}

// extractText converts document bytes to plain text. Only text-like mime
// types are supported; binary formats need an extraction service upstream.
func extractText(raw []byte, mimeType string) (string, error) {
	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(strings.ToLower(base))

	switch {
	case base == "", base == "text/plain", base == "text/markdown",
		base == "application/json", strings.HasPrefix(base, "text/"):
		return string(raw), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMimeType, mimeType)
	}
}
