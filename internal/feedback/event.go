// Package feedback keeps an append-only log of like/dislike events.
package feedback

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrMissingField = errors.New("feedback: user_id, item_id and feedback_type are required")

// Event is one accepted feedback call.
type Event struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ItemID       string    `json:"item_id"`
	FeedbackType string    `json:"feedback_type"`
	SessionID    string    `json:"session_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(userID, itemID, feedbackType, sessionID string) (*Event, error) {
	if userID == "" || itemID == "" || feedbackType == "" {
		return nil, ErrMissingField
	}
	return &Event{
		ID:           uuid.New().String(),
		UserID:       userID,
		ItemID:       itemID,
		FeedbackType: feedbackType,
		SessionID:    sessionID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Repository stores feedback events.
type Repository interface {
	Append(ctx context.Context, evt *Event) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Event, error)
}

// InMemoryRepository keeps events in process memory.
type InMemoryRepository struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{events: make(map[string][]Event)}
}

func (r *InMemoryRepository) Append(ctx context.Context, evt *Event) error {
	if evt == nil {
		return ErrMissingField
	}
	r.mu.Lock()
	r.events[evt.UserID] = append(r.events[evt.UserID], *evt)
	r.mu.Unlock()
	return nil
}

// ListByUser returns the newest events first.
func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	r.mu.RLock()
	src := r.events[userID]
	out := make([]Event, len(src))
	copy(out, src)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
