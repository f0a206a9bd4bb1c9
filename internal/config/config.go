// Package config provides configuration loading for the RAG daemon.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults underneath.
package config

import (
	"fmt"
	"time"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/collections"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/embeddings"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/ingestion"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/retrieval"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/telemetry"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/vectordb"
)

// Vector database backends.
const (
	BackendQdrant  = "qdrant"
	BackendChromem = "chromem"
)

// Config holds the complete daemon configuration.
type Config struct {
	Server      ServerConfig            `koanf:"server"`
	VectorDB    VectorDBConfig          `koanf:"vectordb"`
	Embeddings  embeddings.OpenAIConfig `koanf:"embeddings"`
	Collections collections.Config      `koanf:"collections"`
	Retrieval   retrieval.Config        `koanf:"retrieval"`
	Ingestion   ingestion.Config        `koanf:"ingestion"`
	NATS        NATSConfig              `koanf:"nats"`
	Logging     LoggingConfig           `koanf:"logging"`
	Telemetry   telemetry.Config        `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// VectorDBConfig selects and configures the vector database backend.
type VectorDBConfig struct {
	// Backend is "qdrant" or "chromem".
	Backend string `koanf:"backend"`

	Qdrant  vectordb.QdrantConfig  `koanf:"qdrant"`
	Chromem vectordb.ChromemConfig `koanf:"chromem"`
}

// NATSConfig holds message queue connection configuration.
type NATSConfig struct {
	URL           string        `koanf:"url"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`

	// Enabled turns the ingestion consumer on.
	Enabled bool `koanf:"enabled"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Development switches to human-readable console output.
	Development bool `koanf:"development"`
}

// applyDefaults fills in defaults for every unset field.
func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.VectorDB.Backend == "" {
		c.VectorDB.Backend = BackendChromem
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = 5
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Embeddings.ApplyDefaults()
	c.Collections.ApplyDefaults()
	c.Retrieval.ApplyDefaults()
	c.Ingestion.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	switch c.VectorDB.Backend {
	case BackendQdrant, BackendChromem:
	default:
		return fmt.Errorf("unknown vector database backend %q", c.VectorDB.Backend)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	return nil
}
