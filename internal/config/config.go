package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Vector backends understood by bootstrap.
const (
	VectorBackendPinecone = "pinecone"
	VectorBackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	LogFormat          string
	PublicBaseURL      string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	AdminJWTSecret     string

	// OpenAI
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ChatModel          string
	EmbeddingModel     string
	EmbeddingDimension int

	// LLM fallback provider: "", "bedrock" or "gemini"
	LLMFallbackProvider string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string

	// Vector database
	VectorBackend     string
	PineconeAPIKey    string
	PineconeCloud     string
	PineconeRegion    string
	UsersIndexName    string
	ItemsIndexName    string
	PineconeNamespace string

	// Suggestion tuning
	SimilarityThreshold float64
	TopicEmbeddingFloor float64
	SuggestLLMComposer  bool
	SuggestLLMGate      bool
	PartnerOffersFile   string

	// Redis caches (optional)
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	EmbeddingCacheTTL time.Duration
	ProfileCacheTTL   time.Duration

	// Postgres feedback log (optional)
	DatabaseURL string

	// AWS (Bedrock fallback, S3 catalog sources)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Circuit breaker for external calls
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	ExternalTimeout    time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8000"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
		ChatModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),

		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		VectorBackend:     strings.ToLower(strings.TrimSpace(getEnv("VECTOR_BACKEND", VectorBackendPinecone))),
		PineconeAPIKey:    getEnv("PINECONE_API_KEY", ""),
		PineconeCloud:     getEnv("PINECONE_CLOUD", "aws"),
		PineconeRegion:    getEnv("PINECONE_REGION", "us-east-1"),
		UsersIndexName:    getEnv("USERS_INDEX_NAME", "pinecone-scout-users-index"),
		ItemsIndexName:    getEnv("ITEMS_INDEX_NAME", "pinecone-scout-items-index"),
		PineconeNamespace: getEnv("PINECONE_NAMESPACE", ""),

		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.60),
		TopicEmbeddingFloor: getEnvAsFloat("TOPIC_EMBEDDING_FLOOR", 0.40),
		SuggestLLMComposer:  getEnvAsBool("SUGGEST_LLM_COMPOSER", false),
		SuggestLLMGate:      getEnvAsBool("SUGGEST_LLM_GATE", true),
		PartnerOffersFile:   getEnv("PARTNER_OFFERS_FILE", ""),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		EmbeddingCacheTTL: getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		ProfileCacheTTL:   getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BreakerMaxFailures: uint32(getEnvAsInt("BREAKER_MAX_FAILURES", 5)),
		BreakerOpenTimeout: getEnvAsDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		ExternalTimeout:    getEnvAsDuration("EXTERNAL_TIMEOUT", 30*time.Second),
	}
}

// Validate reports required settings that are missing or out of range.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	switch c.VectorBackend {
	case VectorBackendPinecone:
		if strings.TrimSpace(c.PineconeAPIKey) == "" {
			errs = append(errs, errors.New("PINECONE_API_KEY is required when VECTOR_BACKEND=pinecone"))
		}
	case VectorBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend))
	}
	switch c.LLMFallbackProvider {
	case "":
	case "bedrock":
		if strings.TrimSpace(c.BedrockModelID) == "" {
			errs = append(errs, errors.New("BEDROCK_MODEL_ID is required when LLM_FALLBACK_PROVIDER=bedrock"))
		}
	case "gemini":
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_FALLBACK_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_FALLBACK_PROVIDER %q", c.LLMFallbackProvider))
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("SIMILARITY_THRESHOLD must be within [0,1], got %v", c.SimilarityThreshold))
	}
	if c.TopicEmbeddingFloor < 0 || c.TopicEmbeddingFloor > 1 {
		errs = append(errs, fmt.Errorf("TOPIC_EMBEDDING_FLOOR must be within [0,1], got %v", c.TopicEmbeddingFloor))
	}
	if c.EmbeddingDimension <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSION must be positive"))
	}
	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
