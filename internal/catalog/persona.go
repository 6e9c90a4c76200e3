package catalog

import (
	"fmt"
	"strings"
)

// Persona is a seeded user profile.
type Persona struct {
	UserID           string   `json:"user_id"`
	Description      string   `json:"description,omitempty"`
	AgeRange         string   `json:"age_range,omitempty"`
	HouseholdSize    string   `json:"household_size,omitempty"`
	City             string   `json:"city,omitempty"`
	StylePreference  string   `json:"style_preference,omitempty"`
	Lifestyle        string   `json:"lifestyle,omitempty"`
	PriceSensitivity string   `json:"price_sensitivity,omitempty"`
	ShoppingStyle    string   `json:"shopping_style,omitempty"`
	Interests        []string `json:"interests,omitempty"`
	LikedItems       []string `json:"liked_items,omitempty"`
	DislikedItems    []string `json:"disliked_items,omitempty"`
}

// EmbeddingText combines every persona attribute into one description.
// Missing attributes read as "unknown" so personas stay comparable.
func (p Persona) EmbeddingText() string {
	parts := []string{
		p.Description,
		"Age range: " + orUnknown(p.AgeRange),
		"Household size: " + orUnknown(p.HouseholdSize),
		"City: " + orUnknown(p.City),
		"Style preference: " + orUnknown(p.StylePreference),
		"Lifestyle: " + orUnknown(p.Lifestyle),
		"Price sensitivity: " + orUnknown(p.PriceSensitivity),
		"Shopping style: " + orUnknown(p.ShoppingStyle),
	}
	if len(p.Interests) > 0 {
		parts = append(parts, "Interests: "+strings.Join(p.Interests, ", "))
	}
	return strings.Join(parts, ". ")
}

func (p Persona) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("catalog: persona user_id is required")
	}
	return nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
