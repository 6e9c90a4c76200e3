// Package recommend produces query-driven product recommendations blended
// with the user's profile vector and boosted by similar users' likes.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/profile"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

const (
	DefaultTopK = 3

	queryWeight   = 0.6
	profileWeight = 0.4
)

var ErrEmptyQuery = errors.New("recommend: query is required")

// Recommendation is one ranked item.
type Recommendation struct {
	ItemID            string  `json:"item_id"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	URL               string  `json:"url,omitempty"`
	SimilarityScore   float64 `json:"similarity_score"`
	Rationale         string  `json:"rationale"`
	SimilarUserSignal bool    `json:"similar_user_signal"`
}

type UserContext struct {
	ProfileUpdated bool   `json:"profile_updated"`
	MemoryRecall   string `json:"memory_recall,omitempty"`
}

type Response struct {
	Recommendations []Recommendation `json:"recommendations"`
	UserContext     UserContext      `json:"user_context"`
	Timestamp       string           `json:"timestamp"`
}

// ProfileSource loads user profiles.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
}

// Engine ranks catalog items for a free-text query.
type Engine struct {
	embedder      embedding.Embedder
	items         vectorstore.Index
	profiles      ProfileSource
	collaborative *CollaborativeFilter
	logger        *logging.Logger
	now           func() time.Time
}

type Option func(*Engine)

// WithCollaborativeFilter enables similar-user boosting.
func WithCollaborativeFilter(cf *CollaborativeFilter) Option {
	return func(e *Engine) { e.collaborative = cf }
}

func NewEngine(embedder embedding.Embedder, items vectorstore.Index, profiles ProfileSource, logger *logging.Logger, opts ...Option) *Engine {
	if embedder == nil || items == nil || profiles == nil {
		panic("recommend: embedder, items index and profiles are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		embedder: embedder,
		items:    items,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend embeds query, blends it with the profile vector and returns up
// to topK non-disliked items, followed by any similar-user additions.
func (e *Engine) Recommend(ctx context.Context, userID, query string, topK int) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("recommend: embed query: %w", err)
	}

	p := e.loadProfile(ctx, userID)
	contextVec := queryVec
	var memoryRecall string
	if p != nil {
		contextVec = Blend(queryVec, p.Vector, queryWeight, profileWeight)
		if n := len(p.LikedItems); n > 0 {
			memoryRecall = fmt.Sprintf("You previously liked %d item(s)", n)
		}
	}

	matches, err := e.items.Query(ctx, vectorstore.QueryRequest{Vector: contextVec, TopK: topK * 2})
	if err != nil {
		return nil, fmt.Errorf("recommend: query items: %w", err)
	}

	recs := make([]Recommendation, 0, topK)
	for _, m := range matches {
		if p.Dislikes(m.ID) {
			continue
		}
		product := catalog.ProductFromMetadata(m.ID, m.Metadata)
		recs = append(recs, Recommendation{
			ItemID:          m.ID,
			Name:            product.Name,
			Price:           product.Price,
			URL:             product.URL,
			SimilarityScore: m.Score,
			Rationale:       rationale(product, query),
		})
		if len(recs) >= topK {
			break
		}
	}

	if e.collaborative != nil && p != nil {
		enhanced, err := e.collaborative.Enhance(ctx, p, recs)
		if err != nil {
			e.logger.Warn("collaborative filtering failed", "user_id", userID, "error", err)
		} else {
			recs = enhanced
		}
	}

	return &Response{
		Recommendations: recs,
		UserContext:     UserContext{MemoryRecall: memoryRecall},
		Timestamp:       e.now().UTC().Format(time.RFC3339),
	}, nil
}

func (e *Engine) loadProfile(ctx context.Context, userID string) *profile.Profile {
	if userID == "" {
		return nil
	}
	p, err := e.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, profile.ErrProfileNotFound) {
			e.logger.Warn("profile lookup failed, recommending without it", "user_id", userID, "error", err)
		}
		return nil
	}
	return p
}

func rationale(p catalog.Product, query string) string {
	if p.Description != "" {
		desc := p.Description
		if r := []rune(desc); len(r) > 100 {
			desc = string(r[:100])
		}
		return "Matches your search: " + desc
	}
	return "Matches your search for " + query
}

// Blend returns wq*a + wp*b element-wise. When b is missing or a different
// width, a is returned unchanged.
func Blend(a, b []float32, wq, wp float32) []float32 {
	if len(b) == 0 || len(a) != len(b) {
		return a
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = wq*a[i] + wp*b[i]
	}
	return out
}
