package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

const lockStripes = 64

// Manager reads and writes profiles in the users index. When a Redis client
// is configured, reads go through a short-lived cache that writes
// invalidate.
type Manager struct {
	index    vectorstore.Index
	embedder embedding.Embedder
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *logging.Logger
	now      func() time.Time

	locks [lockStripes]sync.Mutex
}

type Option func(*Manager)

// WithCache enables the Redis read-through cache.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(m *Manager) {
		m.cache = client
		m.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(index vectorstore.Index, embedder embedding.Embedder, logger *logging.Logger, opts ...Option) *Manager {
	if index == nil {
		panic("profile: users index cannot be nil")
	}
	if embedder == nil {
		panic("profile: embedder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		index:    index,
		embedder: embedder,
		logger:   logger,
		now:      time.Now,
		cacheTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cacheTTL <= 0 {
		m.cacheTTL = 5 * time.Minute
	}
	return m
}

// Get returns the stored profile or ErrProfileNotFound.
func (m *Manager) Get(ctx context.Context, userID string) (*Profile, error) {
	if p, ok := m.cached(ctx, userID); ok {
		return p, nil
	}

	vectors, err := m.index.Fetch(ctx, []string{userID})
	if err != nil {
		return nil, fmt.Errorf("profile: fetch %s: %w", userID, err)
	}
	v, ok := vectors[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	p := FromVector(v)
	m.storeCache(ctx, p)
	return p, nil
}

// ApplyFeedback records a like or dislike, re-embeds the preference text and
// persists the profile. Unknown users get a fresh profile.
func (m *Manager) ApplyFeedback(ctx context.Context, userID, itemID string, ft FeedbackType) (*Profile, error) {
	if _, err := ParseFeedbackType(string(ft)); err != nil {
		return nil, err
	}

	lock := m.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	// Read around the cache so concurrent writers on other replicas are seen.
	var p *Profile
	vectors, err := m.index.Fetch(ctx, []string{userID})
	if err != nil {
		return nil, fmt.Errorf("profile: fetch %s: %w", userID, err)
	}
	if v, ok := vectors[userID]; ok {
		p = FromVector(v)
	} else {
		p = &Profile{UserID: userID, LikedItems: []string{}, DislikedItems: []string{}}
	}

	p.Apply(itemID, ft)
	p.Vector = nil
	if err := m.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert writes p. A profile without a vector is embedded from its
// preference text.
func (m *Manager) Upsert(ctx context.Context, p *Profile) error {
	if p == nil || p.UserID == "" {
		return errors.New("profile: user id is required")
	}
	if len(p.Vector) == 0 {
		vec, err := m.embedder.Embed(ctx, p.PreferenceText())
		if err != nil {
			return fmt.Errorf("profile: embed preferences: %w", err)
		}
		p.Vector = vec
	}
	p.LastUpdated = m.now().UTC().Format(time.RFC3339)

	if err := m.index.Upsert(ctx, []vectorstore.Vector{{
		ID:       p.UserID,
		Values:   p.Vector,
		Metadata: p.Metadata(),
	}}); err != nil {
		return fmt.Errorf("profile: upsert %s: %w", p.UserID, err)
	}
	m.invalidate(ctx, p.UserID)
	return nil
}

func (m *Manager) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &m.locks[h.Sum32()%lockStripes]
}

func cacheKey(userID string) string {
	return fmt.Sprintf("scout:profile:%s", userID)
}

func (m *Manager) cached(ctx context.Context, userID string) (*Profile, bool) {
	if m.cache == nil {
		return nil, false
	}
	data, err := m.cache.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		m.logger.Warn("profile cache entry corrupt", "user_id", userID, "error", err)
		return nil, false
	}
	return &p, true
}

func (m *Manager) storeCache(ctx context.Context, p *Profile) {
	if m.cache == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, cacheKey(p.UserID), data, m.cacheTTL).Err(); err != nil {
		m.logger.Warn("profile cache write failed", "user_id", p.UserID, "error", err)
	}
}

func (m *Manager) invalidate(ctx context.Context, userID string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Del(ctx, cacheKey(userID)).Err(); err != nil {
		m.logger.Warn("profile cache invalidate failed", "user_id", userID, "error", err)
	}
}
