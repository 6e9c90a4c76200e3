package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

const unknownProductType = "unknown"

// Catalog categories the items index is partitioned into.
var (
	furnitureCategories  = []string{"furniture_living_room", "furniture_bedroom", "furniture_kitchen", "furniture_bathroom"}
	experienceCategories = []string{"experiences_outdoor", "experiences_cultural", "experiences_food", "experiences_wellness", "experiences_entertainment"}
)

// CategoriesFor maps a free-form product type to catalog categories. Nil
// means the query runs unfiltered.
func CategoriesFor(productType string) []string {
	pt := strings.ToLower(strings.TrimSpace(productType))
	if pt == "" || pt == unknownProductType {
		return nil
	}
	switch {
	case strings.Contains(pt, "cruise"), strings.Contains(pt, "travel"):
		return []string{"cruises"}
	case strings.Contains(pt, "furniture"):
		return append([]string(nil), furnitureCategories...)
	case strings.Contains(pt, "tv"), strings.Contains(pt, "television"), strings.Contains(pt, "electronic"):
		return []string{"televisions"}
	case strings.Contains(pt, "experience"):
		return append([]string(nil), experienceCategories...)
	}
	return nil
}

// Enhancement is the rewritten search query and the product type it targets.
type Enhancement struct {
	ProductType string `json:"product_type"`
	SearchQuery string `json:"search_query"`
	Reasoning   string `json:"reasoning"`
}

var priceConcernPhrases = []string{"too much", "too expensive", "out of budget", "can't afford", "cheaper", "less expensive", "affordable"}

const enhanceSystemPrompt = "You are an assistant that creates optimized search queries for product/service matching. Infer the TYPE of product or service the user is looking for from intent and context, not keywords alone (vacation means cruises, home furnishing means furniture, entertainment means TVs, activities mean experiences). When users liked a product but found it too expensive, target similar products at lower prices. Always respond with valid JSON only."

const enhancePrompt = `Analyze this conversation and create an enhanced search query for finding relevant products or services.

Conversation: "%s"%s

1. Identify the product or service type the user needs.
2. Note what they liked and disliked about anything mentioned.
3. Write a search query that keeps what they liked, avoids what they disliked and never names a rejected product.

Available product categories: televisions, furniture (living_room, bedroom, kitchen, bathroom), cruises, experiences (outdoor, cultural, food, wellness, entertainment).

Respond with ONLY a JSON object:
{"product_type": "cruises, furniture, TVs/electronics, experiences, ...", "reasoning": "brief explanation", "search_query": "natural language query matching product descriptions"}`

// QueryEnhancer rewrites conversational text into a catalog search query.
type QueryEnhancer struct {
	llm    llm.Client
	logger *logging.Logger
}

func NewQueryEnhancer(client llm.Client, logger *logging.Logger) *QueryEnhancer {
	if logger == nil {
		logger = logging.Default()
	}
	return &QueryEnhancer{llm: client, logger: logger}
}

// Enhance falls back to the raw text with an unknown product type when the
// LLM is absent or fails.
func (q *QueryEnhancer) Enhance(ctx context.Context, text string, topic Topic, rejected []string) Enhancement {
	fallback := Enhancement{ProductType: unknownProductType, SearchQuery: text}
	if q == nil || q.llm == nil || strings.TrimSpace(text) == "" {
		return fallback
	}

	var extra strings.Builder
	if topic != "" {
		fmt.Fprintf(&extra, " Detected topic: %s.", topic)
	}
	if len(rejected) > 0 {
		fmt.Fprintf(&extra, " Rejected products (DO NOT include these): %s.", strings.Join(rejected, ", "))
	}
	if mentionsPriceConcern(text) {
		extra.WriteString(" IMPORTANT: The user mentioned price concerns. Find similar products at LOWER prices.")
	}

	req := llm.UserPrompt(enhanceSystemPrompt, fmt.Sprintf(enhancePrompt, text, extra.String()))
	req.Temperature = 0.3
	req.MaxTokens = 250
	req.JSON = true

	resp, err := q.llm.Complete(ctx, req)
	if err != nil {
		q.logger.Debug("query enhancement failed, using original text", "error", err)
		return fallback
	}
	var out Enhancement
	if err := llm.DecodeJSON(resp.Text, &out); err != nil {
		q.logger.Debug("query enhancement unparseable, using original text", "error", err)
		return fallback
	}
	if strings.TrimSpace(out.SearchQuery) == "" {
		out.SearchQuery = text
	}
	if strings.TrimSpace(out.ProductType) == "" {
		out.ProductType = unknownProductType
	}
	q.logger.Debug("enhanced search query", "product_type", out.ProductType, "query", out.SearchQuery, "reasoning", out.Reasoning)
	return out
}

func mentionsPriceConcern(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range priceConcernPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
