package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

type cueTemplate struct {
	cues     []string
	template string
}

// cueTemplates are checked in order against the lower-cased context. Each
// template takes name then price.
var cueTemplates = []cueTemplate{
	{[]string{"looking for", "need"}, "Based on what you're looking for, the %s might be worth considering. It's %s and could be a great match."},
	{[]string{"wondering", "thinking about"}, "If you're thinking about upgrading, the %s (%s) could be a solid option. It aligns well with what you mentioned."},
	{[]string{"help", "recommend"}, "I'd suggest checking out the %s (%s). It seems to match what you're looking for."},
}

var topicTemplates = map[Topic]string{
	TopicGaming:        "For gaming, you might want to consider the %s (%s). It has features that work well for gaming.",
	TopicArtDesign:     "If aesthetics matter to you, the %s (%s) has a design-focused approach that might appeal to you.",
	TopicApartment:     "For smaller spaces, the %s (%s) could work well. It's designed with compact living in mind.",
	TopicHomeTheater:   "For a home theater setup, the %s (%s) could really round things out.",
	TopicEntertainment: "For movie nights and streaming, the %s (%s) might be a nice fit.",
	TopicSports:        "For game day, the %s (%s) could be a great pick.",
	TopicWork:          "For your work setup, the %s (%s) could be a practical choice.",
	TopicFamily:        "For the whole family, the %s (%s) could be a good option.",
	TopicBudget:        "If you're watching the budget, the %s (%s) offers good value.",
	TopicPremium:       "If you want something top of the line, the %s (%s) is worth a look.",
}

const defaultTemplate = "You might find the %s (%s) interesting. It seems relevant to what you're discussing."

var screenSizes = []string{"32", "43", "50", "55", "65", "75", "85", "98"}

// FormatPrice renders a price as whole dollars.
func FormatPrice(price float64) string {
	return fmt.Sprintf("$%.0f", price)
}

// TemplateText picks a template by conversational cue, then by topic, then
// the default, and fills in name and price.
func TemplateText(conversation string, topic Topic, name string, price float64) string {
	lower := strings.ToLower(conversation)
	p := FormatPrice(price)

	if containsAny(lower, "looking for", "need") {
		if size := mentionedSize(lower); size != "" {
			return fmt.Sprintf("Since you're looking for a %s\" TV, you might want to check out the %s. It's %s and seems like a good fit for what you're describing.", size, name, p)
		}
	}
	for _, ct := range cueTemplates {
		if containsAny(lower, ct.cues...) {
			return fmt.Sprintf(ct.template, name, p)
		}
	}
	if tmpl, ok := topicTemplates[topic]; ok {
		return fmt.Sprintf(tmpl, name, p)
	}
	return fmt.Sprintf(defaultTemplate, name, p)
}

func mentionedSize(lower string) string {
	for _, size := range screenSizes {
		if strings.Contains(lower, size+"\"") || strings.Contains(lower, size+"-inch") || strings.Contains(lower, size+" inch") {
			return size
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ComposeInput is what the composer knows about the moment of suggestion.
type ComposeInput struct {
	Conversation string
	History      []string
	Topic        Topic
	Rejected     []string
	Product      catalog.Product
}

const composerSystemPrompt = "You are a helpful friend making product recommendations. Generate natural, conversational suggestions that match the user's conversation style. Be brief, helpful and genuine, never pushy or salesy."

// Composer phrases the suggestion text.
type Composer struct {
	llm    llm.Client
	logger *logging.Logger
}

// NewComposer uses templates only when client is nil.
func NewComposer(client llm.Client, logger *logging.Logger) *Composer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Composer{llm: client, logger: logger}
}

func (c *Composer) Compose(ctx context.Context, in ComposeInput) string {
	name := in.Product.Name
	if name == "" {
		name = "this item"
	}
	if c.llm != nil {
		text, err := c.writeWithLLM(ctx, in, name)
		if err == nil {
			return text
		}
		c.logger.Debug("llm suggestion text failed, using template", "error", err)
	}
	return TemplateText(in.Conversation, in.Topic, name, in.Product.Price)
}

func (c *Composer) writeWithLLM(ctx context.Context, in ComposeInput, name string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a natural, conversational product suggestion that feels like a friend making a recommendation.\n\nCurrent conversation: %q", in.Conversation)
	if in.Topic != "" {
		fmt.Fprintf(&b, " The conversation topic is: %s.", in.Topic)
	}
	if len(in.Rejected) > 0 {
		fmt.Fprintf(&b, " The user previously rejected: %s. If they said something was too expensive, mention that this is more affordable.", strings.Join(in.Rejected, ", "))
	}
	if n := len(in.History); n > 0 {
		start := max(0, n-3)
		fmt.Fprintf(&b, "\n\nPrevious conversation (for style reference): %q", strings.Join(in.History[start:], ". "))
	}

	desc := in.Product.Description
	if r := []rune(desc); len(r) > 200 {
		desc = string(r[:200])
	}
	fmt.Fprintf(&b, "\n\nProduct to suggest:\n- Name: %s\n- Price: $%.2f\n- Brand: %s\n- Description: %s\n", name, in.Product.Price, in.Product.Brand, desc)
	b.WriteString("\nKeep it to 1-2 sentences, match the user's tone and don't be pushy. Respond with ONLY the suggestion text, no quotes and no JSON.")

	req := llm.UserPrompt(composerSystemPrompt, b.String())
	req.Temperature = 0.7
	req.MaxTokens = 150

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	text := stripQuotes(strings.TrimSpace(resp.Text))
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

func stripQuotes(s string) string {
	for _, q := range []string{`"`, `'`} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
