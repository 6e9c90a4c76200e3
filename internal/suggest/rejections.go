package suggest

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

const rejectionSystemPrompt = "You are an assistant that identifies rejected or negatively mentioned products. If a user says they liked a product but it was too expensive or too much, that product is still rejected. Always respond with valid JSON only."

const rejectionPrompt = `Analyze this conversation and identify any products that were mentioned negatively or rejected.

Conversation: "%s"

Include products that were explicitly rejected or disliked, mentioned as "too expensive", "too much", "out of budget" or "can't afford", or said to be "not for me".

Respond with ONLY a JSON object:
{"rejected_products": ["product name 1", "product name 2"], "reasoning": "brief explanation"}

If no products were rejected, return an empty array.`

// RejectionDetector extracts product names the user turned down.
type RejectionDetector struct {
	llm    llm.Client
	logger *logging.Logger
}

func NewRejectionDetector(client llm.Client, logger *logging.Logger) *RejectionDetector {
	if logger == nil {
		logger = logging.Default()
	}
	return &RejectionDetector{llm: client, logger: logger}
}

// Detect returns nil when no LLM is configured or the call fails.
func (d *RejectionDetector) Detect(ctx context.Context, text string) []string {
	if d == nil || d.llm == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	req := llm.UserPrompt(rejectionSystemPrompt, fmt.Sprintf(rejectionPrompt, text))
	req.Temperature = 0.3
	req.MaxTokens = 200
	req.JSON = true

	resp, err := d.llm.Complete(ctx, req)
	if err != nil {
		d.logger.Debug("rejected product detection failed", "error", err)
		return nil
	}
	var result struct {
		RejectedProducts []string `json:"rejected_products"`
		Reasoning        string   `json:"reasoning"`
	}
	if err := llm.DecodeJSON(resp.Text, &result); err != nil {
		d.logger.Debug("rejected product response unparseable", "error", err)
		return nil
	}

	var out []string
	for _, name := range result.RejectedProducts {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	if len(out) > 0 {
		d.logger.Debug("detected rejected products", "products", out, "reasoning", result.Reasoning)
	}
	return out
}

// stripRejected removes every rejected name from text, case-insensitively,
// and collapses the leftover whitespace.
func stripRejected(text string, rejected []string) string {
	for _, name := range rejected {
		if strings.TrimSpace(name) == "" {
			continue
		}
		text = removeFold(text, name)
	}
	return strings.Join(strings.Fields(text), " ")
}

// removeFold deletes every case-insensitive occurrence of sub from s. Runes
// are lowered one at a time so offsets in s and its folded form line up.
func removeFold(s, sub string) string {
	src := []rune(s)
	folded := foldRunes(src)
	needle := foldRunes([]rune(sub))

	out := make([]rune, 0, len(src))
	for i := 0; i < len(src); {
		if hasRunePrefix(folded[i:], needle) {
			i += len(needle)
			continue
		}
		out = append(out, src[i])
		i++
	}
	return string(out)
}

func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

// isRejected reports whether an item matches any rejected name: the name is
// contained in the item's name or id, or a rejected word longer than three
// characters appears in the item's name.
func isRejected(itemID, itemName string, rejected []string) bool {
	name := strings.ToLower(itemName)
	id := strings.ToLower(itemID)
	for _, r := range rejected {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if strings.Contains(name, r) || strings.Contains(id, r) {
			return true
		}
		for _, word := range strings.Fields(r) {
			if len(word) > 3 && strings.Contains(name, word) {
				return true
			}
		}
	}
	return false
}
