// Ragd is the retrieval-augmented-generation daemon.
//
// It manages vector collections atop a vector database, ingests documents
// from an HTTP API and a message queue, and answers questions grounded in
// the stored passages.
//
// Configuration is loaded from a YAML file and RAG_-prefixed environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (embedded chromem backend)
//	ragd
//
//	# Point at a config file and a Qdrant backend
//	ragd -config /etc/ragd/config.yaml
//	RAG_VECTORDB_BACKEND=qdrant ragd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/collections"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/config"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/embeddings"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/guardrails"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/httpapi"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/ingestion"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/logging"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/reranker"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/retrieval"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/telemetry"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/vectordb"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ragd %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("ragd: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
		tel = &telemetry.Telemetry{}
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	deps, err := initDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close(logger)

	server := httpapi.NewServer(deps.store, deps.pipeline, deps.answerer, guardrails.AllowAll, logger)

	logger.Info("ragd starting",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("backend", cfg.VectorDB.Backend),
	)

	err = server.Start(ctx, cfg.Server.Port, cfg.Server.ShutdownTimeout)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("ragd stopped")
	return nil
}

// dependencies holds everything the daemon wires together at startup.
type dependencies struct {
	db       vectordb.Client
	store    *collections.Store
	pipeline *retrieval.Pipeline
	answerer *retrieval.Answerer
	natsConn *nats.Conn
	consumer *ingestion.Consumer
}

// initDependencies builds the dependency graph: vector database, collection
// store, embedding client, retrieval pipeline and, when enabled, the NATS
// ingestion consumer.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	db, err := newVectorDB(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector database client: %w", err)
	}

	store, err := collections.NewStore(db, logger, cfg.Collections)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating collection store: %w", err)
	}

	embedder, err := embeddings.NewOpenAIClient(cfg.Embeddings, embeddings.NewMetrics(logger))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	pipeline, err := retrieval.NewPipeline(store, embedder, reranker.NewDefaultHybrid(), logger, cfg.Retrieval)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating retrieval pipeline: %w", err)
	}

	answerer, err := retrieval.NewAnswerer(pipeline, embedder,
		guardrails.LengthValidator{MaxChars: 4096}, guardrails.PassthroughSanitizer{}, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating answerer: %w", err)
	}

	deps := &dependencies{
		db:       db,
		store:    store,
		pipeline: pipeline,
		answerer: answerer,
	}

	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.ReconnectWait(cfg.NATS.ReconnectWait),
		)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.NATS.URL, err)
		}
		logger.Info("connected to NATS", zap.String("url", cfg.NATS.URL))

		consumer, err := ingestion.NewConsumer(pipeline, ingestion.FileFetcher{}, logger, cfg.Ingestion)
		if err != nil {
			nc.Close()
			_ = db.Close()
			return nil, fmt.Errorf("creating ingestion consumer: %w", err)
		}
		if err := consumer.Start(nc); err != nil {
			nc.Close()
			_ = db.Close()
			return nil, err
		}
		deps.natsConn = nc
		deps.consumer = consumer
	}

	return deps, nil
}

// newVectorDB creates the configured vector database adapter.
func newVectorDB(cfg *config.Config, logger *zap.Logger) (vectordb.Client, error) {
	switch cfg.VectorDB.Backend {
	case config.BackendQdrant:
		return vectordb.NewQdrantClient(cfg.VectorDB.Qdrant)
	case config.BackendChromem:
		return vectordb.NewChromemClient(cfg.VectorDB.Chromem, logger)
	default:
		return nil, fmt.Errorf("unknown vector database backend %q", cfg.VectorDB.Backend)
	}
}

// Close tears dependencies down in reverse order of construction.
func (d *dependencies) Close(logger *zap.Logger) {
	if d.consumer != nil {
		if err := d.consumer.Stop(); err != nil {
			logger.Warn("draining ingestion consumer", zap.Error(err))
		}
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if err := d.db.Close(); err != nil {
		logger.Warn("closing vector database client", zap.Error(err))
	}
}
