// Package llm holds the provider-neutral completion interface and its
// OpenAI, Bedrock and Gemini implementations.
package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: provider returned no text")

// Message is one turn of a prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request describes a single completion. A negative Temperature leaves the
// provider default in place. JSON asks providers that support it for a JSON
// object response.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
	JSON        bool
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// UserPrompt builds the common single-turn request shape.
func UserPrompt(system, prompt string) Request {
	req := Request{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
	if system != "" {
		req.System = []string{system}
	}
	return req
}
