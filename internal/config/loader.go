package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix scopes environment variable overrides to this application.
const envPrefix = "RAG_"

// Load reads configuration from the YAML file at configPath (skipped when
// empty or absent), then overrides with environment variables.
//
// Environment variables use the RAG_ prefix with underscore separators; the
// first underscore after the prefix splits section from field:
//
//	RAG_SERVER_HTTP_PORT       -> server.http_port
//	RAG_VECTORDB_BACKEND       -> vectordb.backend
//	RAG_EMBEDDINGS_API_KEY     -> embeddings.api_key
//	RAG_COLLECTIONS_EXISTENCE_TTL -> collections.existence_ttl
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envToKey maps RAG_SECTION_FIELD_NAME to section.field_name. The first
// underscore after the prefix separates the section; field names keep their
// underscores.
func envToKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}
