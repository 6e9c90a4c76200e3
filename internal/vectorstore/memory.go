package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex keeps vectors in memory and answers queries by brute-force
// cosine similarity. Ties keep insertion order.
type MemoryIndex struct {
	dimension int

	mu      sync.RWMutex
	order   []string
	vectors map[string]Vector
}

// NewMemoryIndex creates an index; a zero dimension accepts any width.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		vectors:   make(map[string]Vector),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, vectors []Vector) error {
	prepared := make([]Vector, 0, len(vectors))
	for _, v := range vectors {
		if m.dimension > 0 && len(v.Values) != m.dimension {
			return ErrDimensionMismatch
		}
		md, err := normalizeMetadata(v.Metadata)
		if err != nil {
			return err
		}
		values := make([]float32, len(v.Values))
		copy(values, v.Values)
		prepared = append(prepared, Vector{ID: v.ID, Values: values, Metadata: md})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range prepared {
		if _, exists := m.vectors[v.ID]; !exists {
			m.order = append(m.order, v.ID)
		}
		m.vectors[v.ID] = v
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	if req.TopK <= 0 {
		return nil, ErrInvalidTopK
	}
	if m.dimension > 0 && len(req.Vector) != m.dimension {
		return nil, ErrDimensionMismatch
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		v := m.vectors[id]
		if !req.Filter.matches(v.Metadata) {
			continue
		}
		matches = append(matches, Match{
			ID:       id,
			Score:    CosineSimilarity(req.Vector, v.Values),
			Metadata: copyMetadata(v.Metadata),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	return matches, nil
}

func (m *MemoryIndex) Fetch(ctx context.Context, ids []string) (map[string]Vector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Vector, len(ids))
	for _, id := range ids {
		v, ok := m.vectors[id]
		if !ok {
			continue
		}
		values := make([]float32, len(v.Values))
		copy(values, v.Values)
		out[id] = Vector{ID: id, Values: values, Metadata: copyMetadata(v.Metadata)}
	}
	return out, nil
}

// Len reports the number of stored vectors.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func copyMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// CosineSimilarity returns 0 for empty, mismatched or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
