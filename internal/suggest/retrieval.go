package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/profile"
	"github.com/scoutlabs/pinecone-scout/internal/recommend"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

const (
	// DefaultSimilarityThreshold is the minimum cosine score an item needs.
	DefaultSimilarityThreshold = 0.60

	retrievalTopK        = 10
	retrievalQueryWeight = 0.7
	retrievalUserWeight  = 0.3
)

var errEmptySearch = errors.New("suggest: search text is empty")

// Candidate is the item chosen for a suggestion.
type Candidate struct {
	Product catalog.Product
	Score   float64
}

// RetrievalRequest carries everything the filter needs besides the index.
type RetrievalRequest struct {
	Query      string
	Categories []string
	Profile    *profile.Profile
	Rejected   []string
}

// Retriever queries the items index and applies the threshold, disliked and
// rejected-name filters.
type Retriever struct {
	embedder  embedding.Embedder
	items     vectorstore.Index
	threshold float64
	logger    *logging.Logger
}

// NewRetriever uses DefaultSimilarityThreshold when threshold is not in (0,1].
func NewRetriever(embedder embedding.Embedder, items vectorstore.Index, threshold float64, logger *logging.Logger) *Retriever {
	if embedder == nil || items == nil {
		panic("suggest: retriever requires an embedder and items index")
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Retriever{embedder: embedder, items: items, threshold: threshold, logger: logger}
}

func (r *Retriever) Threshold() float64 { return r.threshold }

// Find returns nil without error when nothing survives filtering.
func (r *Retriever) Find(ctx context.Context, req RetrievalRequest) (*Candidate, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errEmptySearch
	}
	vec, err := r.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("suggest: embed search query: %w", err)
	}
	if req.Profile != nil {
		vec = recommend.Blend(vec, req.Profile.Vector, retrievalQueryWeight, retrievalUserWeight)
	}

	matches, err := r.items.Query(ctx, vectorstore.QueryRequest{
		Vector: vec,
		TopK:   retrievalTopK,
		Filter: vectorstore.CategoryFilter(req.Categories...),
	})
	if err != nil {
		return nil, fmt.Errorf("suggest: query items: %w", err)
	}

	m, ok := r.selectMatch(matches, req.Profile, req.Rejected)
	if !ok {
		r.logger.Debug("no match survived filtering", "matches", len(matches), "threshold", r.threshold)
		return nil, nil
	}
	return &Candidate{Product: catalog.ProductFromMetadata(m.ID, m.Metadata), Score: m.Score}, nil
}

// selectMatch walks matches in the order the index returned them and picks
// the first that passes every filter. Equal scores keep that order.
func (r *Retriever) selectMatch(matches []vectorstore.Match, p *profile.Profile, rejected []string) (vectorstore.Match, bool) {
	for _, m := range matches {
		switch {
		case m.Score < r.threshold:
			r.logger.Debug("match below threshold", "item_id", m.ID, "score", m.Score)
		case p.Dislikes(m.ID):
			r.logger.Debug("match disliked by user", "item_id", m.ID)
		case isRejected(m.ID, vectorstore.MetaString(m.Metadata, "name"), rejected):
			r.logger.Debug("match rejected in conversation", "item_id", m.ID)
		default:
			return m, true
		}
	}
	return vectorstore.Match{}, false
}
