package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	openai "github.com/sashabaranov/go-openai"

	appconfig "github.com/scoutlabs/pinecone-scout/internal/config"
	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// NewOpenAIAPI builds the go-openai client shared by chat and embeddings.
func NewOpenAIAPI(cfg *appconfig.Config) *openai.Client {
	oaCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
		oaCfg.BaseURL = base
	}
	return openai.NewClientWithConfig(oaCfg)
}

// BuildLLMClient wires OpenAI chat behind a circuit breaker, optionally
// falling back to Bedrock or Gemini. The returned closer releases provider
// connections.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, api *openai.Client, awsCfg aws.Config, observer llm.Observer, logger *logging.Logger) (llm.Client, io.Closer, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if api == nil {
		return nil, nil, fmt.Errorf("bootstrap: openai client is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	guard := func(name string, inner llm.Client) llm.Client {
		return llm.NewBreakerClient(inner, llm.BreakerOptions{
			Name:        name,
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
			CallTimeout: cfg.ExternalTimeout,
			Observer:    observer,
		})
	}
	primary := guard("openai", llm.NewOpenAIClient(api, cfg.ChatModel))

	var fallback llm.Client
	var closer io.Closer = nopCloser{}
	switch cfg.LLMFallbackProvider {
	case "":
	case "bedrock":
		model := strings.TrimSpace(cfg.BedrockModelID)
		if model == "" {
			logger.Warn("bedrock fallback selected but model id empty; disabling")
			break
		}
		fallback = guard("bedrock", llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), model))
	case "gemini":
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini fallback: %w", err)
		}
		fallback = guard("gemini", gemini)
		closer = gemini
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm fallback provider %q", cfg.LLMFallbackProvider)
	}

	if fallback == nil {
		logger.Info("llm configured", "primary", "openai", "model", cfg.ChatModel)
		return primary, closer, nil
	}
	logger.Info("llm configured", "primary", "openai", "model", cfg.ChatModel, "fallback", cfg.LLMFallbackProvider)
	return llm.NewFallbackClient(primary, fallback, logger.Logger), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
