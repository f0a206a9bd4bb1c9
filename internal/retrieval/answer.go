package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/embeddings"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/guardrails"
)

// ErrQuestionRejected indicates the input guardrail denied the question.
var ErrQuestionRejected = errors.New("question rejected")

// systemPrompt instructs the model to answer only from the supplied context.
const systemPrompt = `You are a retrieval-augmented assistant. Answer the question using only the provided context passages. If the context does not contain the answer, say so instead of guessing. Cite which passage supports each claim.`

// Answer is a grounded response with the passages that produced it.
type Answer struct {
	Text    string
	Sources []SearchResult
}

// Answerer runs the full query path: guardrail verdict, retrieval across
// collections, reranking, context assembly, completion and output
// sanitization.
type Answerer struct {
	pipeline  *Pipeline
	completer embeddings.Completer
	validator guardrails.InputValidator
	sanitizer guardrails.OutputSanitizer
	logger    *zap.Logger
}

// NewAnswerer wires the query path. Validator and sanitizer may be nil, in
// which case inputs pass and outputs are returned untouched.
func NewAnswerer(pipeline *Pipeline, completer embeddings.Completer, validator guardrails.InputValidator, sanitizer guardrails.OutputSanitizer, logger *zap.Logger) (*Answerer, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	if completer == nil {
		return nil, errors.New("completer required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{
		pipeline:  pipeline,
		completer: completer,
		validator: validator,
		sanitizer: sanitizer,
		logger:    logger,
	}, nil
}

// Ask answers a question grounded in the given collections.
func (a *Answerer) Ask(ctx context.Context, question string, collections []string, topK int) (*Answer, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retrieval.Ask")
	defer span.End()
	span.SetAttributes(attribute.Int("collections", len(collections)))

	if a.validator != nil {
		verdict, err := a.validator.ValidateInput(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("validating question: %w", err)
		}
		if !verdict.Allowed {
			span.SetStatus(codes.Error, "question rejected")
			return nil, fmt.Errorf("%w: %s", ErrQuestionRejected, verdict.Reason)
		}
	}

	if topK <= 0 {
		topK = a.pipeline.config.TopK
	}

	if len(collections) == 0 {
		return nil, ErrNoCollections
	}

	queryEmbedding, err := a.pipeline.embedder.EmbedQuery(ctx, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results, err := a.pipeline.searchMany(ctx, queryEmbedding, collections, topK, topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		return nil, err
	}

	results = a.pipeline.Rerank(ctx, question, queryEmbedding, results, topK)

	passages := BuildContext(results, a.pipeline.config.MaxContextChars)
	sources := results
	if len(passages) < len(results) {
		sources = results[:len(passages)]
	}

	messages := []embeddings.Message{
		{Role: embeddings.RoleSystem, Content: systemPrompt},
		{Role: embeddings.RoleUser, Content: renderPrompt(passages, question)},
	}
	text, err := a.completer.Complete(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	if a.sanitizer != nil {
		text, err = a.sanitizer.SanitizeOutput(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("sanitizing answer: %w", err)
		}
	}

	return &Answer{Text: text, Sources: sources}, nil
}

// renderPrompt formats numbered context passages ahead of the question.
func renderPrompt(passages []string, question string) string {
	var b strings.Builder
	b.WriteString("Context passages:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
