// Package vectorstore abstracts the similarity indexes holding item and user
// vectors. Pinecone backs production; MemoryIndex backs tests and local runs.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index width.
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
	// ErrInvalidTopK is returned for non-positive result counts.
	ErrInvalidTopK = errors.New("vectorstore: topK must be positive")
)

// Vector is a stored entry.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is one similarity result. Score is cosine similarity.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Filter restricts a query to entries whose Field metadata equals one of
// Values.
type Filter struct {
	Field  string
	Values []string
}

// CategoryFilter is the filter used for catalog queries.
func CategoryFilter(categories ...string) *Filter {
	if len(categories) == 0 {
		return nil
	}
	return &Filter{Field: "category", Values: categories}
}

type QueryRequest struct {
	Vector []float32
	TopK   int
	Filter *Filter
}

// Index is the store contract shared by every backend. Query results are
// ordered by descending score.
type Index interface {
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, req QueryRequest) ([]Match, error)
	Fetch(ctx context.Context, ids []string) (map[string]Vector, error)
}

func (f *Filter) matches(metadata map[string]any) bool {
	if f == nil || f.Field == "" || len(f.Values) == 0 {
		return true
	}
	got, ok := metadata[f.Field].(string)
	if !ok {
		return false
	}
	for _, want := range f.Values {
		if got == want {
			return true
		}
	}
	return false
}

// expression renders the filter in Pinecone's metadata filter language.
func (f *Filter) expression() map[string]any {
	if f == nil || f.Field == "" || len(f.Values) == 0 {
		return nil
	}
	if len(f.Values) == 1 {
		return map[string]any{f.Field: map[string]any{"$eq": f.Values[0]}}
	}
	values := make([]any, len(f.Values))
	for i, v := range f.Values {
		values[i] = v
	}
	return map[string]any{f.Field: map[string]any{"$in": values}}
}
