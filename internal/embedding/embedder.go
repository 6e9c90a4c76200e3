// Package embedding turns text into vectors for the item and user indexes.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrEmptyText is returned when asked to embed blank input.
var ErrEmptyText = errors.New("embedding: text is empty")

// Embedder maps text to a fixed-width vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Observer receives the latency of each provider call.
type Observer interface {
	ObserveExternalCall(dependency, operation string, d time.Duration, err error)
}

type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder calls the embeddings endpoint.
type OpenAIEmbedder struct {
	client    embeddingClient
	model     string
	dimension int
	tracer    trace.Tracer
	observer  Observer
}

func NewOpenAIEmbedder(client embeddingClient, model string, dimension int, observer Observer) *OpenAIEmbedder {
	if client == nil {
		panic("embedding: openai client cannot be nil")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
		tracer:    otel.Tracer("scout.internal.embedding"),
		observer:  observer,
	}
}

// Model identifies the vector space, used to key caches.
func (e *OpenAIEmbedder) Model() string {
	return fmt.Sprintf("%s/%d", e.model, e.dimension)
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyText
		}
	}

	ctx, span := e.tracer.Start(ctx, "scout.embedding")
	defer span.End()
	span.SetAttributes(
		attribute.String("scout.embedding.model", e.model),
		attribute.Int("scout.embedding.inputs", len(texts)),
	)

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	}
	// Only the text-embedding-3 family accepts a dimension override.
	if e.dimension > 0 && strings.HasPrefix(e.model, "text-embedding-3") {
		req.Dimensions = e.dimension
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if e.observer != nil {
		e.observer.ObserveExternalCall("openai", "embedding", time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding: create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		err := fmt.Errorf("embedding: response size mismatch: want %d got %d", len(texts), len(resp.Data))
		span.RecordError(err)
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embedding: response index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}
