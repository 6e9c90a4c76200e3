package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	"github.com/scoutlabs/pinecone-scout/internal/profile"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
)

const (
	defaultSimilarUsers = 5
	boostFactor         = 0.1
)

// CollaborativeFilter boosts items liked by users whose profile vectors are
// close to the requester's.
type CollaborativeFilter struct {
	users        vectorstore.Index
	items        vectorstore.Index
	similarUsers int
}

func NewCollaborativeFilter(users, items vectorstore.Index, similarUsers int) *CollaborativeFilter {
	if similarUsers <= 0 {
		similarUsers = defaultSimilarUsers
	}
	return &CollaborativeFilter{users: users, items: items, similarUsers: similarUsers}
}

// Enhance sums the similarity of every neighbour that liked an item. Items
// already recommended gain 0.1 of that sum; others are fetched and appended
// with it as their score. The result is sorted by score, descending.
func (c *CollaborativeFilter) Enhance(ctx context.Context, p *profile.Profile, recs []Recommendation) ([]Recommendation, error) {
	if p == nil || len(p.Vector) == 0 {
		return recs, nil
	}

	neighbours, err := c.users.Query(ctx, vectorstore.QueryRequest{Vector: p.Vector, TopK: c.similarUsers + 1})
	if err != nil {
		return recs, fmt.Errorf("recommend: query similar users: %w", err)
	}

	var order []string
	weights := make(map[string]float64)
	for _, n := range neighbours {
		if n.ID == p.UserID {
			continue
		}
		for _, itemID := range vectorstore.MetaStrings(n.Metadata, "liked_items") {
			if _, seen := weights[itemID]; !seen {
				order = append(order, itemID)
			}
			weights[itemID] += n.Score
		}
	}
	if len(order) == 0 {
		return recs, nil
	}

	index := make(map[string]int, len(recs))
	for i, r := range recs {
		index[r.ItemID] = i
	}

	var missing []string
	for _, itemID := range order {
		if i, ok := index[itemID]; ok {
			recs[i].SimilarUserSignal = true
			recs[i].SimilarityScore += weights[itemID] * boostFactor
			continue
		}
		if p.Dislikes(itemID) {
			continue
		}
		missing = append(missing, itemID)
	}

	if len(missing) > 0 {
		fetched, err := c.items.Fetch(ctx, missing)
		if err != nil {
			return recs, fmt.Errorf("recommend: fetch similar-user items: %w", err)
		}
		for _, itemID := range missing {
			v, ok := fetched[itemID]
			if !ok {
				continue
			}
			product := catalog.ProductFromMetadata(itemID, v.Metadata)
			recs = append(recs, Recommendation{
				ItemID:            itemID,
				Name:              product.Name,
				Price:             product.Price,
				URL:               product.URL,
				SimilarityScore:   weights[itemID] * boostFactor,
				Rationale:         "Popular with similar users",
				SimilarUserSignal: true,
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].SimilarityScore > recs[j].SimilarityScore
	})
	return recs, nil
}
