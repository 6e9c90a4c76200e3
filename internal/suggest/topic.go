// Package suggest decides whether a conversation warrants a product
// suggestion and, if so, which catalog item to offer and how to phrase it.
package suggest

import "strings"

// Topic is a fixed-vocabulary label for what a conversation is about.
type Topic string

const (
	TopicGaming        Topic = "gaming"
	TopicEntertainment Topic = "entertainment"
	TopicHomeTheater   Topic = "home_theater"
	TopicArtDesign     Topic = "art_design"
	TopicSports        Topic = "sports"
	TopicWork          Topic = "work"
	TopicFamily        Topic = "family"
	TopicApartment     Topic = "apartment"
	TopicBudget        Topic = "budget"
	TopicPremium       Topic = "premium"
)

// Topics lists every valid label.
var Topics = []Topic{
	TopicGaming,
	TopicEntertainment,
	TopicHomeTheater,
	TopicArtDesign,
	TopicSports,
	TopicWork,
	TopicFamily,
	TopicApartment,
	TopicBudget,
	TopicPremium,
}

// ParseTopic accepts a label in any case, with spaces or hyphens in place of
// underscores.
func ParseTopic(raw string) (Topic, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	for _, t := range Topics {
		if string(t) == normalized {
			return t, true
		}
	}
	return "", false
}

func (t Topic) String() string { return string(t) }

type topicDefinition struct {
	topic    Topic
	keywords []string
	exemplar string
}

// topicTable is scanned in order; the first topic with a keyword contained in
// the text wins. More specific topics sit ahead of broader ones
// (home_theater before entertainment, since "movie night" contains "movie").
var topicTable = []topicDefinition{
	{
		topic:    TopicGaming,
		keywords: []string{"gaming", "gamer", "video game", "playstation", "ps5", "xbox", "nintendo", "console", "input lag"},
		exemplar: "I play a lot of video games on my console and want low input lag and a high refresh rate.",
	},
	{
		topic:    TopicHomeTheater,
		keywords: []string{"home theater", "home theatre", "surround sound", "soundbar", "projector", "movie night", "dolby atmos"},
		exemplar: "I'm building a home theater with surround sound and a big screen for movie nights.",
	},
	{
		topic:    TopicEntertainment,
		keywords: []string{"movie", "netflix", "streaming", "tv show", "binge", "series", "concert", "show tonight"},
		exemplar: "We love streaming movies and binge watching shows together in the evening.",
	},
	{
		topic:    TopicSports,
		keywords: []string{"sports", "football", "basketball", "soccer", "baseball", "hockey", "game day", "super bowl"},
		exemplar: "I watch football and basketball every weekend and want to see fast motion clearly.",
	},
	{
		topic:    TopicArtDesign,
		keywords: []string{"aesthetic", "artwork", "art mode", "interior design", "decor", "design-focused", "gallery", "minimalist"},
		exemplar: "I care about how things look in my space and want something that fits the decor like a piece of art.",
	},
	{
		topic:    TopicWork,
		keywords: []string{"work from home", "home office", "remote work", "office", "desk", "meetings", "productivity"},
		exemplar: "I work from home and need my home office set up for long days and video meetings.",
	},
	{
		topic:    TopicFamily,
		keywords: []string{"family", "kids", "children", "toddler", "baby", "my parents", "grandkids"},
		exemplar: "We have young kids at home and need something durable that the whole family can enjoy.",
	},
	{
		topic:    TopicApartment,
		keywords: []string{"apartment", "studio", "small space", "small room", "dorm", "condo", "tiny living room"},
		exemplar: "I live in a small apartment so anything I buy has to fit a compact space.",
	},
	{
		topic:    TopicBudget,
		keywords: []string{"budget", "cheap", "affordable", "inexpensive", "too expensive", "too much", "save money", "low cost", "can't afford"},
		exemplar: "I'm on a tight budget and need something affordable that is still good value for money.",
	},
	{
		topic:    TopicPremium,
		keywords: []string{"premium", "luxury", "high-end", "high end", "top of the line", "flagship", "best money can buy"},
		exemplar: "Price is not a concern, I want the best premium high-end option available.",
	},
}

// MatchKeyword returns the first topic in table order whose keyword appears
// in text, case-insensitively.
func MatchKeyword(text string) (Topic, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return "", false
	}
	for _, def := range topicTable {
		for _, kw := range def.keywords {
			if strings.Contains(lower, kw) {
				return def.topic, true
			}
		}
	}
	return "", false
}

func exemplarTexts() ([]Topic, []string) {
	topics := make([]Topic, len(topicTable))
	texts := make([]string, len(topicTable))
	for i, def := range topicTable {
		topics[i] = def.topic
		texts[i] = def.exemplar
	}
	return topics, texts
}
