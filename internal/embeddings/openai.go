package embeddings

import (
	"context"
	"fmt"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

// OpenAIConfig holds configuration for the OpenAI-compatible API client.
//
// Any endpoint speaking the OpenAI wire format works: OpenAI itself, Azure
// deployments, vLLM, or a local inference gateway.
type OpenAIConfig struct {
	// BaseURL is the API base URL. Empty uses the provider default.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates requests.
	APIKey string `koanf:"api_key"`

	// EmbeddingModel is the embedding model name.
	EmbeddingModel string `koanf:"embedding_model"`

	// CompletionModel is the chat completion model name.
	CompletionModel string `koanf:"completion_model"`

	// Dimension is the embedding dimension produced by EmbeddingModel.
	Dimension int `koanf:"dimension"`

	// RequestsPerSecond caps the client-side request rate. Zero disables
	// rate limiting.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// RequestTimeout bounds each individual remote attempt. Default: 30 seconds
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// MaxRetries is the maximum number of retry attempts for failed remote
	// calls. Default: 3
	MaxRetries int `koanf:"max_retries"`

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry (exponential backoff). Default: 500ms
	RetryBackoff time.Duration `koanf:"retry_backoff"`
}

// ApplyDefaults sets default values for unset fields.
func (c *OpenAIConfig) ApplyDefaults() {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-3-small"
	}
	if c.CompletionModel == "" {
		c.CompletionModel = "gpt-4o-mini"
	}
	if c.Dimension == 0 {
		c.Dimension = 1536
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
}

// Validate validates the configuration.
func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// OpenAIClient implements Embedder and Completer over an OpenAI-compatible
// API via langchaingo.
type OpenAIClient struct {
	llm      *openai.LLM
	embedder *lcembeddings.EmbedderImpl
	config   OpenAIConfig
	limiter  *rate.Limiter
	metrics  *Metrics
}

// NewOpenAIClient creates a client for the configured endpoint.
func NewOpenAIClient(config OpenAIConfig, metrics *Metrics) (*OpenAIClient, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.CompletionModel),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &OpenAIClient{
		llm:      llm,
		embedder: embedder,
		config:   config,
		limiter:  limiter,
		metrics:  metrics,
	}, nil
}

func (c *OpenAIClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// withRetry runs a remote call with a per-attempt timeout and bounded
// exponential-backoff retries, so a stalled endpoint surfaces as an error
// instead of hanging the caller.
func (c *OpenAIClient) withRetry(ctx context.Context, operationName string, operation func(ctx context.Context) error) error {
	backoff := c.config.RetryBackoff

	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err = c.wait(ctx); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		err = operation(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return fmt.Errorf("%s failed after %d retries: %w", operationName, c.config.MaxRetries, err)
}

// EmbedDocuments generates embeddings for multiple texts, preserving input
// ordering.
func (c *OpenAIClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordGeneration(ctx, c.config.EmbeddingModel, "embed_documents", time.Since(start), len(texts), genErr)
		}
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	var vectors [][]float32
	err := c.withRetry(ctx, "embed_documents", func(ctx context.Context) error {
		v, err := c.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	if len(vectors) != len(texts) {
		genErr = fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
		return nil, genErr
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (c *OpenAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordGeneration(ctx, c.config.EmbeddingModel, "embed_query", time.Since(start), 1, genErr)
		}
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	var vector []float32
	err := c.withRetry(ctx, "embed_query", func(ctx context.Context) error {
		v, err := c.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	return vector, nil
}

// Dimension returns the configured embedding dimension.
func (c *OpenAIClient) Dimension() int {
	return c.config.Dimension
}

// Complete generates a chat completion for the given messages.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: messages cannot be empty", ErrEmptyInput)
	}

	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		content[i] = llms.TextParts(chatMessageType(m.Role), m.Content)
	}

	var resp *llms.ContentResponse
	err := c.withRetry(ctx, "complete", func(ctx context.Context) error {
		r, err := c.llm.GenerateContent(ctx, content)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrCompletionFailed)
	}
	return resp.Choices[0].Content, nil
}

func chatMessageType(role Role) schema.ChatMessageType {
	switch role {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	case RoleModel:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

var (
	_ Embedder  = (*OpenAIClient)(nil)
	_ Completer = (*OpenAIClient)(nil)
)
