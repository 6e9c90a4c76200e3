// Package catalog models the products and user personas seeded into the
// vector indexes and imports them from local files or S3.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
)

var ErrInvalidProduct = errors.New("catalog: invalid product")

// Product is a catalog entry stored in the items index.
type Product struct {
	ItemID      string   `json:"item_id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Price       float64  `json:"price" validate:"gte=0"`
	Description string   `json:"description" validate:"required"`
	Brand       string   `json:"brand,omitempty"`
	Features    []string `json:"features,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Validate checks the fields the importer depends on.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ItemID) == "":
		return fmt.Errorf("%w: item_id is required", ErrInvalidProduct)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: %s: name is required", ErrInvalidProduct, p.ItemID)
	case strings.TrimSpace(p.Description) == "":
		return fmt.Errorf("%w: %s: description is required", ErrInvalidProduct, p.ItemID)
	case p.Price < 0:
		return fmt.Errorf("%w: %s: price must not be negative", ErrInvalidProduct, p.ItemID)
	}
	return nil
}

// EmbeddingText is the text embedded for similarity search.
func (p Product) EmbeddingText() string {
	return p.Description
}

// Metadata renders the product as index metadata.
func (p Product) Metadata() map[string]any {
	return map[string]any{
		"name":        p.Name,
		"category":    p.Category,
		"price":       p.Price,
		"description": p.Description,
		"brand":       p.Brand,
		"features":    append([]string{}, p.Features...),
		"url":         p.URL,
	}
}

// ProductFromMetadata rebuilds a product from an index entry.
func ProductFromMetadata(id string, md map[string]any) Product {
	name := vectorstore.MetaString(md, "name")
	if name == "" {
		name = "Unknown"
	}
	return Product{
		ItemID:      id,
		Name:        name,
		Category:    vectorstore.MetaString(md, "category"),
		Price:       vectorstore.MetaFloat(md, "price"),
		Description: vectorstore.MetaString(md, "description"),
		Brand:       vectorstore.MetaString(md, "brand"),
		Features:    vectorstore.MetaStrings(md, "features"),
		URL:         vectorstore.MetaString(md, "url"),
	}
}
