package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// CachedEmbedder memoizes vectors in Redis. Cache failures are logged and
// fall through to the wrapped embedder.
type CachedEmbedder struct {
	inner  Embedder
	redis  *redis.Client
	space  string
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedEmbedder keys entries by space (model and dimension) plus text.
func NewCachedEmbedder(inner Embedder, client *redis.Client, space string, ttl time.Duration, logger *logging.Logger) *CachedEmbedder {
	if inner == nil {
		panic("embedding: inner embedder cannot be nil")
	}
	if client == nil {
		panic("embedding: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedEmbedder{inner: inner, redis: client, space: space, ttl: ttl, logger: logger}
}

// Space is the vector space the cache keys are scoped to.
func (c *CachedEmbedder) Space() string { return c.space }

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		vec, err := c.load(ctx, text)
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				c.logger.Warn("embedding cache read failed", "error", err)
			}
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
			continue
		}
		out[i] = vec
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = fresh[j]
		if err := c.store(ctx, missTexts[j], fresh[j]); err != nil {
			c.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	return out, nil
}

func (c *CachedEmbedder) load(ctx context.Context, text string) ([]float32, error) {
	data, err := c.redis.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		return nil, err
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, fmt.Errorf("embedding: decode cached vector: %w", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) store(ctx context.Context, text string, vec []float32) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.key(text), data, c.ttl).Err()
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.space + "\x00" + text))
	return "scout:embedding:" + hex.EncodeToString(sum[:])
}
