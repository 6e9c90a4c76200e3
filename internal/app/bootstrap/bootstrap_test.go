package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/scoutlabs/pinecone-scout/internal/config"
	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/feedback"
	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

func memoryConfig() *appconfig.Config {
	return &appconfig.Config{
		OpenAIAPIKey:        "sk-test",
		ChatModel:           "gpt-4o-mini",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimension:  8,
		VectorBackend:       appconfig.VectorBackendMemory,
		SimilarityThreshold: 0.6,
		TopicEmbeddingFloor: 0.4,
		SuggestLLMGate:      true,
		RateLimitPerSecond:  10,
		RateLimitBurst:      20,
		CORSAllowedOrigins:  []string{"*"},
		BreakerMaxFailures:  5,
		BreakerOpenTimeout:  time.Second,
		ExternalTimeout:     time.Second,
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.Discard(), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	_ = client.Close()

	mr.Close()
	if client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	if pool := BuildPostgresPool(context.Background(), "", logging.Discard()); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestBuildFeedbackRepositoryFallsBackToMemory(t *testing.T) {
	if _, ok := BuildFeedbackRepository(nil).(*feedback.InMemoryRepository); !ok {
		t.Fatalf("expected in-memory repository without a pool")
	}
}

func TestBuildEmbedderKeysCacheByModelSpace(t *testing.T) {
	cfg := memoryConfig()
	inner := embedding.NewOpenAIEmbedder(NewOpenAIAPI(cfg), cfg.EmbeddingModel, cfg.EmbeddingDimension, nil)

	if got := BuildEmbedder(cfg, inner, nil, logging.Discard()); got != embedding.Embedder(inner) {
		t.Fatalf("expected bare embedder without redis, got %T", got)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cached, ok := BuildEmbedder(cfg, inner, client, logging.Discard()).(*embedding.CachedEmbedder)
	if !ok {
		t.Fatalf("expected cached embedder with redis")
	}
	if cached.Space() != "text-embedding-3-small/8" {
		t.Fatalf("unexpected cache space %q", cached.Space())
	}
}

func TestBuildIndexesMemory(t *testing.T) {
	users, items, err := BuildIndexes(context.Background(), memoryConfig(), nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := users.(*vectorstore.MemoryIndex); !ok {
		t.Fatalf("expected memory users index, got %T", users)
	}
	if users == items {
		t.Fatalf("expected distinct indexes")
	}
}

func TestBuildIndexesUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.VectorBackend = "qdrant"
	if _, _, err := BuildIndexes(context.Background(), cfg, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestBuildLLMClientWithoutFallback(t *testing.T) {
	cfg := memoryConfig()
	client, closer, err := BuildLLMClient(context.Background(), cfg, NewOpenAIAPI(cfg), aws.Config{}, nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.(*llm.BreakerClient); !ok {
		t.Fatalf("expected breaker-wrapped openai client, got %T", client)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBuildLLMClientBedrockFallback(t *testing.T) {
	cfg := memoryConfig()
	cfg.LLMFallbackProvider = "bedrock"
	cfg.BedrockModelID = "anthropic.claude-3-haiku-20240307-v1:0"

	client, _, err := BuildLLMClient(context.Background(), cfg, NewOpenAIAPI(cfg), aws.Config{Region: "us-east-1"}, nil, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.(*llm.FallbackClient); !ok {
		t.Fatalf("expected fallback client, got %T", client)
	}
}

func TestBuildLLMClientErrors(t *testing.T) {
	cfg := memoryConfig()
	if _, _, err := BuildLLMClient(context.Background(), nil, NewOpenAIAPI(cfg), aws.Config{}, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for nil config")
	}

	cfg.LLMFallbackProvider = "gemini"
	if _, _, err := BuildLLMClient(context.Background(), cfg, NewOpenAIAPI(cfg), aws.Config{}, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for gemini without api key")
	}

	cfg.LLMFallbackProvider = "cohere"
	if _, _, err := BuildLLMClient(context.Background(), cfg, NewOpenAIAPI(cfg), aws.Config{}, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.OpenAIAPIKey = ""
	if _, err := Build(context.Background(), cfg, aws.Config{}, logging.Discard()); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected OPENAI_API_KEY validation error, got %v", err)
	}
}

func TestBuildRejectsBadPartnerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partners.json")
	if err := os.WriteFile(path, []byte(`{"underwater_basket_weaving": {"partner": "X", "text": "Y"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := memoryConfig()
	cfg.PartnerOffersFile = path
	if _, err := Build(context.Background(), cfg, aws.Config{Region: "us-east-1"}, logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown partner topic")
	}
}

func TestBuildMemoryBackendServesHealth(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(), aws.Config{Region: "us-east-1"}, logging.Discard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	for path, want := range map[string]int{
		"/health":                    http.StatusOK,
		"/metrics":                   http.StatusOK,
		"/api/profile?user_id=ghost": http.StatusNotFound,
		"/admin/feedback?user_id=u1": http.StatusNotFound,
	} {
		rr := httptest.NewRecorder()
		app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, rr.Code)
		}
	}
	if _, ok := app.FeedbackLog.(*feedback.InMemoryRepository); !ok {
		t.Fatalf("expected in-memory feedback log without DATABASE_URL")
	}
}
