package profile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

type stubEmbedder struct {
	texts []string
	err   error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.texts = append(s.texts, text)
	return []float32{float32(len(text)), 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type countingIndex struct {
	*vectorstore.MemoryIndex
	fetches int
}

func (c *countingIndex) Fetch(ctx context.Context, ids []string) (map[string]vectorstore.Vector, error) {
	c.fetches++
	return c.MemoryIndex.Fetch(ctx, ids)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, opts ...Option) (*Manager, *countingIndex, *stubEmbedder) {
	t.Helper()
	idx := &countingIndex{MemoryIndex: vectorstore.NewMemoryIndex(0)}
	emb := &stubEmbedder{}
	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	return NewManager(idx, emb, logging.Discard(), opts...), idx, emb
}

func TestPreferenceText(t *testing.T) {
	p := &Profile{}
	assert.Equal(t, "New user with no preferences", p.PreferenceText())

	p = &Profile{
		AgeRange:      "25-34",
		HouseholdSize: "2",
		City:          "Austin",
		LikedItems:    []string{"tv-1", "sofa-2"},
		DislikedItems: []string{"lamp-9"},
	}
	assert.Equal(t,
		"Age range: 25-34. Household size: 2. City: Austin. Liked items: tv-1, sofa-2. Disliked items: lamp-9",
		p.PreferenceText(),
	)
}

func TestApplyTogglesLists(t *testing.T) {
	p := &Profile{LikedItems: []string{}, DislikedItems: []string{}}
	p.Apply("tv-1", FeedbackLike)
	p.Apply("tv-1", FeedbackLike)
	assert.Equal(t, []string{"tv-1"}, p.LikedItems)

	p.Apply("tv-1", FeedbackDislike)
	assert.Empty(t, p.LikedItems)
	assert.Equal(t, []string{"tv-1"}, p.DislikedItems)
	assert.True(t, p.Dislikes("tv-1"))

	p.Apply("tv-1", FeedbackLike)
	assert.Equal(t, []string{"tv-1"}, p.LikedItems)
	assert.Empty(t, p.DislikedItems)
	assert.Equal(t, 1, p.PreferencesCount())
}

func TestParseFeedbackType(t *testing.T) {
	ft, err := ParseFeedbackType("like")
	require.NoError(t, err)
	assert.Equal(t, FeedbackLike, ft)

	_, err = ParseFeedbackType("love")
	assert.ErrorIs(t, err, ErrInvalidFeedbackType)
}

func TestManager_GetMissing(t *testing.T) {
	m, _, _ := newManager(t)
	_, err := m.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestManager_ApplyFeedbackCreatesProfile(t *testing.T) {
	m, _, emb := newManager(t)
	ctx := context.Background()

	p, err := m.ApplyFeedback(ctx, "user-1", "tv-1", FeedbackLike)
	require.NoError(t, err)
	assert.Equal(t, []string{"tv-1"}, p.LikedItems)
	assert.Equal(t, "2026-03-01T12:00:00Z", p.LastUpdated)
	assert.Equal(t, []string{"Liked items: tv-1"}, emb.texts)

	got, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tv-1"}, got.LikedItems)
	assert.Empty(t, got.DislikedItems)
	assert.NotEmpty(t, got.Vector)

	_, err = m.ApplyFeedback(ctx, "user-1", "tv-1", FeedbackDislike)
	require.NoError(t, err)
	got, err = m.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, got.LikedItems)
	assert.Equal(t, []string{"tv-1"}, got.DislikedItems)
}

func TestManager_ApplyFeedbackRejectsUnknownType(t *testing.T) {
	m, _, _ := newManager(t)
	_, err := m.ApplyFeedback(context.Background(), "user-1", "tv-1", "meh")
	assert.ErrorIs(t, err, ErrInvalidFeedbackType)
}

func TestManager_EmbedFailureIsReturned(t *testing.T) {
	m, _, emb := newManager(t)
	emb.err = errors.New("openai down")
	_, err := m.ApplyFeedback(context.Background(), "user-1", "tv-1", FeedbackLike)
	assert.ErrorContains(t, err, "openai down")
}

func TestManager_UpsertKeepsSuppliedVector(t *testing.T) {
	m, _, emb := newManager(t)
	ctx := context.Background()
	err := m.Upsert(ctx, &Profile{
		UserID:    "persona-1",
		City:      "Denver",
		Interests: []string{"hiking", "coffee"},
		Vector:    []float32{0.1, 0.2},
	})
	require.NoError(t, err)
	assert.Empty(t, emb.texts)

	got, err := m.Get(ctx, "persona-1")
	require.NoError(t, err)
	assert.Equal(t, "Denver", got.City)
	assert.Equal(t, []string{"hiking", "coffee"}, got.Interests)
	assert.Equal(t, []float32{0.1, 0.2}, got.Vector)
}

func TestManager_CacheReadThroughAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m, idx, _ := newManager(t, WithCache(client, time.Minute))
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, &Profile{UserID: "u1", City: "Austin", Vector: []float32{1, 0}}))

	_, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	_, err = m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.fetches)

	raw, err := mr.Get(cacheKey("u1"))
	require.NoError(t, err)
	var cached Profile
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, "Austin", cached.City)

	_, err = m.ApplyFeedback(ctx, "u1", "tv-1", FeedbackLike)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKey("u1")))

	got, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tv-1"}, got.LikedItems)
}

func TestFromVectorReadsLegacyCommaLists(t *testing.T) {
	p := FromVector(vectorstore.Vector{
		ID: "u9",
		Metadata: map[string]any{
			"interests":   "gaming, movies",
			"liked_items": []any{"a", "b"},
		},
	})
	assert.Equal(t, []string{"gaming", "movies"}, p.Interests)
	assert.Equal(t, []string{"a", "b"}, p.LikedItems)
	assert.Equal(t, []string{}, p.DislikedItems)
}
