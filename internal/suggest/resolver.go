package suggest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// Tier names the resolver stage that produced a topic.
type Tier string

const (
	TierSupplied  Tier = "supplied"
	TierLLM       Tier = "llm"
	TierKeyword   Tier = "keyword"
	TierEmbedding Tier = "embedding"
)

// Confidence is the LLM's self-reported certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// DefaultTopicFloor is the minimum exemplar similarity for the embedding tier.
const DefaultTopicFloor = 0.40

// Resolution is a resolved topic and how it was reached. Confidence is only
// set by the LLM tier; Score only by the embedding tier.
type Resolution struct {
	Topic      Topic
	Tier       Tier
	Confidence Confidence
	Score      float64
}

const topicSystemPrompt = "You are a topic detection assistant. Analyze conversations and identify the primary topic or interest. Always respond with valid JSON only."

const topicPrompt = `Analyze this conversation and identify the primary topic or interest related to products.

Conversation: "%s"%s

Choose the topic from this list only: %s

Respond with ONLY a JSON object in this exact format:
{"topic": "<one label from the list> or null if no clear topic", "confidence": "high" or "medium" or "low", "reasoning": "brief explanation"}`

// Resolver assigns a Topic to conversational text by trying the LLM, then the
// keyword table, then exemplar similarity.
type Resolver struct {
	llm      llm.Client
	embedder embedding.Embedder
	floor    float64
	logger   *logging.Logger

	mu        sync.Mutex
	exemplars map[Topic][]float32
}

type ResolverOption func(*Resolver)

// WithResolverLLM enables the LLM tier.
func WithResolverLLM(client llm.Client) ResolverOption {
	return func(r *Resolver) { r.llm = client }
}

// WithResolverEmbedder enables the embedding tier with the given floor. A
// non-positive floor uses DefaultTopicFloor.
func WithResolverEmbedder(e embedding.Embedder, floor float64) ResolverOption {
	return func(r *Resolver) {
		r.embedder = e
		if floor <= 0 {
			floor = DefaultTopicFloor
		}
		r.floor = floor
	}
}

func NewResolver(logger *logging.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Resolver{logger: logger, floor: DefaultTopicFloor}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns ok=false when no tier matches. Prior topics are passed to
// the LLM as context only.
func (r *Resolver) Resolve(ctx context.Context, text string, prior []Topic) (Resolution, bool) {
	if strings.TrimSpace(text) == "" {
		return Resolution{}, false
	}
	if res, ok := r.resolveLLM(ctx, text, prior); ok {
		return res, true
	}
	if topic, ok := MatchKeyword(text); ok {
		return Resolution{Topic: topic, Tier: TierKeyword}, true
	}
	return r.resolveEmbedding(ctx, text)
}

func (r *Resolver) resolveLLM(ctx context.Context, text string, prior []Topic) (Resolution, bool) {
	if r.llm == nil {
		return Resolution{}, false
	}

	var hint string
	if len(prior) > 0 {
		labels := make([]string, len(prior))
		for i, t := range prior {
			labels[i] = string(t)
		}
		hint = "\nPreviously discussed topics: " + strings.Join(labels, ", ")
	}
	labels := make([]string, len(Topics))
	for i, t := range Topics {
		labels[i] = string(t)
	}

	req := llm.UserPrompt(topicSystemPrompt, fmt.Sprintf(topicPrompt, text, hint, strings.Join(labels, ", ")))
	req.Temperature = 0.3
	req.MaxTokens = 150
	req.JSON = true

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		r.logger.Debug("llm topic detection failed", "error", err)
		return Resolution{}, false
	}

	var result struct {
		Topic      *string `json:"topic"`
		Confidence string  `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := llm.DecodeJSON(resp.Text, &result); err != nil {
		r.logger.Debug("llm topic response unparseable", "error", err)
		return Resolution{}, false
	}
	if result.Topic == nil {
		return Resolution{}, false
	}
	topic, ok := ParseTopic(*result.Topic)
	if !ok {
		r.logger.Debug("llm returned unknown topic", "topic", *result.Topic)
		return Resolution{}, false
	}
	confidence := Confidence(strings.ToLower(strings.TrimSpace(result.Confidence)))
	if confidence != ConfidenceHigh && confidence != ConfidenceMedium {
		r.logger.Debug("llm topic confidence too low", "topic", topic, "confidence", confidence)
		return Resolution{}, false
	}
	return Resolution{Topic: topic, Tier: TierLLM, Confidence: confidence}, true
}

func (r *Resolver) resolveEmbedding(ctx context.Context, text string) (Resolution, bool) {
	if r.embedder == nil {
		return Resolution{}, false
	}
	exemplars, err := r.exemplarVectors(ctx)
	if err != nil {
		r.logger.Debug("topic exemplar embedding failed", "error", err)
		return Resolution{}, false
	}
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		r.logger.Debug("topic text embedding failed", "error", err)
		return Resolution{}, false
	}

	var best Resolution
	found := false
	for _, topic := range Topics {
		ev, ok := exemplars[topic]
		if !ok {
			continue
		}
		score := vectorstore.CosineSimilarity(vec, ev)
		if !found || score > best.Score {
			best = Resolution{Topic: topic, Tier: TierEmbedding, Score: score}
			found = true
		}
	}
	if !found || best.Score < r.floor {
		return Resolution{}, false
	}
	return best, true
}

// exemplarVectors embeds every exemplar once and memoises the result. A
// failed attempt is not cached so the next call retries.
func (r *Resolver) exemplarVectors(ctx context.Context) (map[Topic][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exemplars != nil {
		return r.exemplars, nil
	}
	topics, texts := exemplarTexts()
	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(topics) {
		return nil, fmt.Errorf("suggest: expected %d exemplar vectors, got %d", len(topics), len(vectors))
	}
	out := make(map[Topic][]float32, len(topics))
	for i, t := range topics {
		out[t] = vectors[i]
	}
	r.exemplars = out
	return out, nil
}
