package suggest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// Decision is the trigger classifier's verdict on a message.
type Decision int

const (
	DecisionUndecided Decision = iota
	DecisionAccept
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionAccept:
		return "accept"
	case DecisionReject:
		return "reject"
	default:
		return "undecided"
	}
}

// rejectPatterns mark a user who does not want suggestions right now.
var rejectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bnot\s+interested\b`),
	regexp.MustCompile(`(?i)\bno\s+thanks?\b`),
	regexp.MustCompile(`(?i)\bno\s+thank\s+you\b`),
	regexp.MustCompile(`(?i)\b(don'?t|do\s+not)\s+(want|need)\s+(any\s+)?(suggestions?|recommendations?|help|anything)\b`),
	regexp.MustCompile(`(?i)\bstop\s+(suggesting|recommending|selling)\b`),
	regexp.MustCompile(`(?i)\bno\s+(more\s+)?(suggestions|recommendations)\b`),
	regexp.MustCompile(`(?i)\bdone\s+shopping\b`),
	regexp.MustCompile(`(?i)\bnot\s+(looking|shopping)\s+(for|right\s+now)\b`),
	regexp.MustCompile(`(?i)\balready\s+(bought|purchased|ordered)\b`),
	regexp.MustCompile(`(?i)\bleave\s+me\s+alone\b`),
}

// acceptPatterns mark an open buying intent.
var acceptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blooking\s+(for|at)\b`),
	regexp.MustCompile(`(?i)\bshopping\s+for\b`),
	regexp.MustCompile(`(?i)\bin\s+the\s+market\s+for\b`),
	regexp.MustCompile(`(?i)\b(i|we)\s+need\b`),
	regexp.MustCompile(`(?i)\bneed\s+(a|an|some|new|to\s+buy)\b`),
	regexp.MustCompile(`(?i)\bwant\s+(a|an|some|to\s+buy|to\s+get)\b`),
	regexp.MustCompile(`(?i)\b(recommend|recommendation|recommendations|suggest|suggestions)\b`),
	regexp.MustCompile(`(?i)\bthinking\s+(about|of)\s+(buying|getting|upgrading)\b`),
	regexp.MustCompile(`(?i)\bwondering\b`),
	regexp.MustCompile(`(?i)\bupgrad(e|ing)\b`),
	regexp.MustCompile(`(?i)\bhelp\s+me\s+(find|choose|pick)\b`),
	regexp.MustCompile(`(?i)\bwhat\s+should\s+(i|we)\s+(get|buy)\b`),
	regexp.MustCompile(`(?i)\bany\s+ideas\b`),
}

// ClassifyTrigger scans reject phrases before accept phrases, so a reject hit
// wins regardless of any accept phrase in the same text.
func ClassifyTrigger(text string) Decision {
	text = strings.TrimSpace(text)
	if text == "" {
		return DecisionUndecided
	}
	for _, pat := range rejectPatterns {
		if pat.MatchString(text) {
			return DecisionReject
		}
	}
	for _, pat := range acceptPatterns {
		if pat.MatchString(text) {
			return DecisionAccept
		}
	}
	return DecisionUndecided
}

// ShouldSuggest is true only when an accept phrase is present and no reject
// phrase is.
func ShouldSuggest(text string) bool {
	return ClassifyTrigger(text) == DecisionAccept
}

const gateSystemPrompt = "You are an assistant that determines when product/service suggestions are appropriate. This system can suggest any type of purchasable product or service (electronics, furniture, travel packages, experiences). Only return false if the conversation is about non-purchasable topics or the user explicitly doesn't want suggestions. If a user rejects one product but is still shopping, suggest alternatives. Always respond with valid JSON only."

const gatePrompt = `Analyze this conversation and determine if it's appropriate to suggest a product or service.

Conversation: "%s"
Detected topic: %s

Do NOT suggest if the conversation is about general advice, personal problems, questions unrelated to products or services, or the user said they don't want suggestions or are done shopping.
Rejecting a single product does NOT mean they don't want suggestions; they likely want alternatives.

Respond with ONLY a JSON object:
{"should_suggest": true or false, "reasoning": "brief explanation"}`

// Gate settles undecided trigger verdicts.
type Gate struct {
	llm    llm.Client
	logger *logging.Logger
}

// NewGate accepts a nil client, in which case undecided text is allowed only
// when a topic was resolved.
func NewGate(client llm.Client, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{llm: client, logger: logger}
}

// Allow applies the trigger classifier to text and falls back to the LLM,
// then to whether a topic is known.
func (g *Gate) Allow(ctx context.Context, text string, topic Topic) (bool, Decision) {
	decision := ClassifyTrigger(text)
	switch decision {
	case DecisionReject:
		return false, decision
	case DecisionAccept:
		return true, decision
	}

	if g.llm != nil {
		allow, err := g.askLLM(ctx, text, topic)
		if err == nil {
			return allow, decision
		}
		g.logger.Debug("llm suggestion gate failed, using topic fallback", "error", err)
	}
	return topic != "", decision
}

func (g *Gate) askLLM(ctx context.Context, text string, topic Topic) (bool, error) {
	label := string(topic)
	if label == "" {
		label = "none"
	}
	req := llm.UserPrompt(gateSystemPrompt, fmt.Sprintf(gatePrompt, text, label))
	req.Temperature = 0.3
	req.MaxTokens = 200
	req.JSON = true

	resp, err := g.llm.Complete(ctx, req)
	if err != nil {
		return false, err
	}
	var result struct {
		ShouldSuggest *bool  `json:"should_suggest"`
		Reasoning     string `json:"reasoning"`
	}
	if err := llm.DecodeJSON(resp.Text, &result); err != nil {
		return false, err
	}
	if result.ShouldSuggest == nil {
		return false, fmt.Errorf("suggest: gate response missing should_suggest")
	}
	g.logger.Debug("llm suggestion gate", "should_suggest", *result.ShouldSuggest, "reasoning", result.Reasoning)
	return *result.ShouldSuggest, nil
}
