// Package profile manages user profiles stored in the users index.
package profile

import (
	"errors"
	"slices"
	"strings"

	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
)

var (
	// ErrProfileNotFound is returned when the users index has no entry.
	ErrProfileNotFound = errors.New("profile: not found")
	// ErrInvalidFeedbackType is returned for anything but like or dislike.
	ErrInvalidFeedbackType = errors.New("profile: feedback_type must be 'like' or 'dislike'")
)

// FeedbackType is a like or dislike signal on an item.
type FeedbackType string

const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
)

// ParseFeedbackType validates raw input.
func ParseFeedbackType(raw string) (FeedbackType, error) {
	switch FeedbackType(raw) {
	case FeedbackLike:
		return FeedbackLike, nil
	case FeedbackDislike:
		return FeedbackDislike, nil
	default:
		return "", ErrInvalidFeedbackType
	}
}

// Profile is the metadata stored alongside a user's preference vector.
type Profile struct {
	UserID           string    `json:"user_id"`
	AgeRange         string    `json:"age_range,omitempty"`
	HouseholdSize    string    `json:"household_size,omitempty"`
	City             string    `json:"city,omitempty"`
	StylePreference  string    `json:"style_preference,omitempty"`
	Lifestyle        string    `json:"lifestyle,omitempty"`
	PriceSensitivity string    `json:"price_sensitivity,omitempty"`
	ShoppingStyle    string    `json:"shopping_style,omitempty"`
	Interests        []string  `json:"interests,omitempty"`
	LikedItems       []string  `json:"liked_items"`
	DislikedItems    []string  `json:"disliked_items"`
	LastUpdated      string    `json:"last_updated"`
	Vector           []float32 `json:"vector,omitempty"`
}

// PreferencesCount is the number of explicit like/dislike signals.
func (p *Profile) PreferencesCount() int {
	return len(p.LikedItems) + len(p.DislikedItems)
}

// Dislikes reports whether itemID was disliked.
func (p *Profile) Dislikes(itemID string) bool {
	return p != nil && slices.Contains(p.DislikedItems, itemID)
}

// Apply toggles itemID between the liked and disliked lists.
func (p *Profile) Apply(itemID string, ft FeedbackType) {
	switch ft {
	case FeedbackLike:
		if !slices.Contains(p.LikedItems, itemID) {
			p.LikedItems = append(p.LikedItems, itemID)
		}
		p.DislikedItems = slices.DeleteFunc(p.DislikedItems, func(id string) bool { return id == itemID })
	case FeedbackDislike:
		if !slices.Contains(p.DislikedItems, itemID) {
			p.DislikedItems = append(p.DislikedItems, itemID)
		}
		p.LikedItems = slices.DeleteFunc(p.LikedItems, func(id string) bool { return id == itemID })
	}
}

// PreferenceText is the text embedded as the profile vector.
func (p *Profile) PreferenceText() string {
	var parts []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Age range", p.AgeRange)
	add("Household size", p.HouseholdSize)
	add("City", p.City)
	add("Style preference", p.StylePreference)
	if len(p.LikedItems) > 0 {
		parts = append(parts, "Liked items: "+strings.Join(p.LikedItems, ", "))
	}
	if len(p.DislikedItems) > 0 {
		parts = append(parts, "Disliked items: "+strings.Join(p.DislikedItems, ", "))
	}
	if len(parts) == 0 {
		return "New user with no preferences"
	}
	return strings.Join(parts, ". ")
}

// Metadata renders the profile for the users index.
func (p *Profile) Metadata() map[string]any {
	md := map[string]any{
		"liked_items":    nonNil(p.LikedItems),
		"disliked_items": nonNil(p.DislikedItems),
		"last_updated":   p.LastUpdated,
	}
	set := func(key, value string) {
		if value != "" {
			md[key] = value
		}
	}
	set("age_range", p.AgeRange)
	set("household_size", p.HouseholdSize)
	set("city", p.City)
	set("style_preference", p.StylePreference)
	set("lifestyle", p.Lifestyle)
	set("price_sensitivity", p.PriceSensitivity)
	set("shopping_style", p.ShoppingStyle)
	if len(p.Interests) > 0 {
		md["interests"] = p.Interests
	}
	return md
}

// FromVector rebuilds a profile from a users index entry.
func FromVector(v vectorstore.Vector) *Profile {
	md := v.Metadata
	return &Profile{
		UserID:           v.ID,
		AgeRange:         vectorstore.MetaString(md, "age_range"),
		HouseholdSize:    vectorstore.MetaString(md, "household_size"),
		City:             vectorstore.MetaString(md, "city"),
		StylePreference:  vectorstore.MetaString(md, "style_preference"),
		Lifestyle:        vectorstore.MetaString(md, "lifestyle"),
		PriceSensitivity: vectorstore.MetaString(md, "price_sensitivity"),
		ShoppingStyle:    vectorstore.MetaString(md, "shopping_style"),
		Interests:        vectorstore.MetaStrings(md, "interests"),
		LikedItems:       nonNil(vectorstore.MetaStrings(md, "liked_items")),
		DislikedItems:    nonNil(vectorstore.MetaStrings(md, "disliked_items")),
		LastUpdated:      vectorstore.MetaString(md, "last_updated"),
		Vector:           v.Values,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
