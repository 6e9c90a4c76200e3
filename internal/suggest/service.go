package suggest

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/internal/profile"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// ErrEmptyContext is returned when the conversation text is blank.
var ErrEmptyContext = errors.New("suggest: conversation_context is required")

// Outcome labels for metrics and logs.
const (
	OutcomeProduct  = "product"
	OutcomePartner  = "partner"
	OutcomeRejected = "rejected"
	OutcomeDeclined = "declined"
	OutcomeNone     = "none"
)

const historyWindow = 3

// Request is one predictive suggestion call. PreviousTopics may mix topic
// labels and earlier messages.
type Request struct {
	UserID         string
	Context        string
	DetectedTopic  string
	PreviousTopics []string
}

// Suggestion is the ephemeral result shown to the user. Nil pointers
// serialize as null.
type Suggestion struct {
	Text        string   `json:"text"`
	Partner     *string  `json:"partner"`
	IsSponsored bool     `json:"is_sponsored"`
	ItemID      *string  `json:"item_id"`
	ItemName    *string  `json:"item_name"`
	ItemPrice   *float64 `json:"item_price"`
	ItemURL     *string  `json:"item_url"`
}

type Response struct {
	Suggestion    *Suggestion `json:"suggestion"`
	OptInRequired bool        `json:"opt_in_required"`
}

// ProfileSource loads user profiles.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
}

// Metrics records pipeline outcomes.
type Metrics interface {
	ObserveSuggestOutcome(outcome string)
	ObserveTopicResolution(tier string)
}

// ServiceConfig tunes the pipeline. LLM may be nil, which disables every
// LLM-backed stage.
type ServiceConfig struct {
	LLM                 llm.Client
	LLMGate             bool
	LLMComposer         bool
	SimilarityThreshold float64
	TopicFloor          float64
	Partners            PartnerOffers
	Metrics             Metrics
}

// Service runs the predictive suggestion pipeline.
type Service struct {
	resolver   *Resolver
	gate       *Gate
	rejections *RejectionDetector
	enhancer   *QueryEnhancer
	retriever  *Retriever
	composer   *Composer
	partners   PartnerOffers
	profiles   ProfileSource
	metrics    Metrics
	tracer     trace.Tracer
	logger     *logging.Logger
}

func NewService(embedder embedding.Embedder, items vectorstore.Index, profiles ProfileSource, cfg ServiceConfig, logger *logging.Logger) *Service {
	if profiles == nil {
		panic("suggest: profile source is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Component("suggest")

	resolverOpts := []ResolverOption{WithResolverEmbedder(embedder, cfg.TopicFloor)}
	var gateLLM, composerLLM llm.Client
	if cfg.LLM != nil {
		resolverOpts = append(resolverOpts, WithResolverLLM(cfg.LLM))
		if cfg.LLMGate {
			gateLLM = cfg.LLM
		}
		if cfg.LLMComposer {
			composerLLM = cfg.LLM
		}
	}
	partners := cfg.Partners
	if partners == nil {
		partners = PartnerOffers{}
	}

	return &Service{
		resolver:   NewResolver(logger, resolverOpts...),
		gate:       NewGate(gateLLM, logger),
		rejections: NewRejectionDetector(cfg.LLM, logger),
		enhancer:   NewQueryEnhancer(cfg.LLM, logger),
		retriever:  NewRetriever(embedder, items, cfg.SimilarityThreshold, logger),
		composer:   NewComposer(composerLLM, logger),
		partners:   partners,
		profiles:   profiles,
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer("scout.internal.suggest"),
		logger:     logger,
	}
}

// Suggest only errors on invalid input. External failures degrade to the
// next stage or to an empty response.
func (s *Service) Suggest(ctx context.Context, req Request) (*Response, error) {
	text := strings.TrimSpace(req.Context)
	if text == "" {
		return nil, ErrEmptyContext
	}

	ctx, span := s.tracer.Start(ctx, "scout.suggest")
	defer span.End()
	span.SetAttributes(attribute.String("scout.user_id", req.UserID))

	priorTopics, history := splitPrevious(req.PreviousTopics)
	enriched := text
	if len(history) > 0 {
		start := max(0, len(history)-historyWindow)
		enriched = strings.Join(history[start:], ". ") + ". " + text
	}

	rejected := s.rejections.Detect(ctx, enriched)

	resolution, resolved := s.resolveTopic(ctx, req.DetectedTopic, enriched, priorTopics)
	topic := resolution.Topic
	span.SetAttributes(attribute.String("scout.topic", string(topic)), attribute.String("scout.topic_tier", string(resolution.Tier)))
	s.logger.Debug("topic resolution", "user_id", req.UserID, "resolved", resolved, "topic", topic, "tier", resolution.Tier, "confidence", resolution.Confidence, "score", resolution.Score)

	allow, decision := s.gate.Allow(ctx, text, topic)
	if !allow {
		outcome := OutcomeDeclined
		if decision == DecisionReject {
			outcome = OutcomeRejected
		}
		return s.finish(span, outcome, &Response{}), nil
	}

	p := s.loadProfile(ctx, req.UserID)

	search := stripRejected(text, rejected)
	if search == "" {
		search = text
	}
	enh := s.enhancer.Enhance(ctx, search, topic, rejected)
	candidate, err := s.retriever.Find(ctx, RetrievalRequest{
		Query:      enh.SearchQuery,
		Categories: CategoriesFor(enh.ProductType),
		Profile:    p,
		Rejected:   rejected,
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Debug("product retrieval failed", "user_id", req.UserID, "error", err)
	}
	if candidate != nil {
		product := candidate.Product
		suggestion := &Suggestion{
			Text: s.composer.Compose(ctx, ComposeInput{
				Conversation: text,
				History:      history,
				Topic:        topic,
				Rejected:     rejected,
				Product:      product,
			}),
			ItemID:    strPtr(product.ItemID),
			ItemName:  strPtr(product.Name),
			ItemPrice: &product.Price,
			ItemURL:   strPtr(product.URL),
		}
		s.logger.Debug("suggesting product", "user_id", req.UserID, "item_id", product.ItemID, "score", candidate.Score)
		return s.finish(span, OutcomeProduct, &Response{Suggestion: suggestion}), nil
	}

	if offer, ok := s.partners.For(topic); ok {
		suggestion := &Suggestion{
			Text:        offer.Text,
			Partner:     strPtr(offer.Partner),
			IsSponsored: true,
			ItemURL:     strPtr(offer.URL),
		}
		return s.finish(span, OutcomePartner, &Response{Suggestion: suggestion, OptInRequired: true}), nil
	}

	return s.finish(span, OutcomeNone, &Response{}), nil
}

func (s *Service) resolveTopic(ctx context.Context, supplied, text string, prior []Topic) (Resolution, bool) {
	if t, ok := ParseTopic(supplied); ok {
		s.observeTier(TierSupplied)
		return Resolution{Topic: t, Tier: TierSupplied}, true
	}
	res, ok := s.resolver.Resolve(ctx, text, prior)
	if !ok {
		s.observeTier("none")
		return Resolution{}, false
	}
	s.observeTier(res.Tier)
	return res, true
}

func (s *Service) observeTier(tier Tier) {
	if s.metrics != nil {
		s.metrics.ObserveTopicResolution(string(tier))
	}
}

func (s *Service) loadProfile(ctx context.Context, userID string) *profile.Profile {
	if userID == "" {
		return nil
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, profile.ErrProfileNotFound) {
			s.logger.Debug("profile lookup failed, continuing without it", "user_id", userID, "error", err)
		}
		return nil
	}
	return p
}

func (s *Service) finish(span trace.Span, outcome string, resp *Response) *Response {
	span.SetAttributes(attribute.String("scout.suggest_outcome", outcome))
	if s.metrics != nil {
		s.metrics.ObserveSuggestOutcome(outcome)
	}
	s.logger.Debug("suggestion outcome", "outcome", outcome)
	return resp
}

// splitPrevious separates entries that are topic labels from earlier
// conversation messages, keeping their order.
func splitPrevious(previous []string) ([]Topic, []string) {
	var topics []Topic
	var messages []string
	for _, entry := range previous {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if t, ok := ParseTopic(entry); ok {
			topics = append(topics, t)
			continue
		}
		messages = append(messages, entry)
	}
	return topics, messages
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
