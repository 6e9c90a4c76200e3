package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/scoutlabs/pinecone-scout/internal/feedback"
	"github.com/scoutlabs/pinecone-scout/internal/profile"
	"github.com/scoutlabs/pinecone-scout/internal/recommend"
	"github.com/scoutlabs/pinecone-scout/internal/suggest"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// ServiceVersion is reported by the root endpoint.
const ServiceVersion = "1.0.0"

type Recommender interface {
	Recommend(ctx context.Context, userID, query string, topK int) (*recommend.Response, error)
}

type ProfileStore interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
	ApplyFeedback(ctx context.Context, userID, itemID string, ft profile.FeedbackType) (*profile.Profile, error)
}

type Suggester interface {
	Suggest(ctx context.Context, req suggest.Request) (*suggest.Response, error)
}

// Metrics records request-level counters.
type Metrics interface {
	ObserveFeedback(feedbackType string)
	ObserveRecommendations(n int)
}

type ScoutConfig struct {
	Recommender Recommender
	Profiles    ProfileStore
	Suggester   Suggester
	FeedbackLog feedback.Repository
	Metrics     Metrics
	Logger      *logging.Logger
}

// ScoutHandler serves the recommendation, feedback, profile and predictive
// suggestion endpoints.
type ScoutHandler struct {
	recommender Recommender
	profiles    ProfileStore
	suggester   Suggester
	feedbackLog feedback.Repository
	metrics     Metrics
	logger      *logging.Logger
}

func NewScoutHandler(cfg ScoutConfig) *ScoutHandler {
	if cfg.Recommender == nil || cfg.Profiles == nil || cfg.Suggester == nil {
		panic("handlers: recommender, profiles and suggester are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &ScoutHandler{
		recommender: cfg.Recommender,
		profiles:    cfg.Profiles,
		suggester:   cfg.Suggester,
		feedbackLog: cfg.FeedbackLog,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Root lists the public endpoints.
// Route: GET /
func (h *ScoutHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Pinecone Scout API",
		"version": ServiceVersion,
		"endpoints": map[string]string{
			"recommend":          "POST /api/recommend",
			"feedback":           "POST /api/feedback",
			"profile":            "GET /api/profile",
			"predictive_suggest": "POST /api/predictive_suggest",
		},
	})
}

// Health is a liveness probe.
// Route: GET /health
func (h *ScoutHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type RecommendRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	Query     string `json:"query" validate:"required"`
	SessionID string `json:"session_id,omitempty"`
}

// Recommend returns ranked products for a query.
// Route: POST /api/recommend
func (h *ScoutHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeDetail(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := h.recommender.Recommend(r.Context(), req.UserID, req.Query, recommend.DefaultTopK)
	if err != nil {
		h.logger.Error("recommendation failed", "user_id", req.UserID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error generating recommendations")
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveRecommendations(len(resp.Recommendations))
	}
	writeJSON(w, http.StatusOK, resp)
}

type FeedbackRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	ItemID       string `json:"item_id" validate:"required"`
	FeedbackType string `json:"feedback_type" validate:"required"`
	SessionID    string `json:"session_id,omitempty"`
}

type FeedbackResponse struct {
	Status         string `json:"status"`
	ProfileUpdated bool   `json:"profile_updated"`
}

// Feedback records a like or dislike and updates the user's profile.
// Route: POST /api/feedback
func (h *ScoutHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ft, err := profile.ParseFeedbackType(req.FeedbackType)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "feedback_type must be 'like' or 'dislike'")
		return
	}

	if _, err := h.profiles.ApplyFeedback(r.Context(), req.UserID, req.ItemID, ft); err != nil {
		h.logger.Error("feedback update failed", "user_id", req.UserID, "item_id", req.ItemID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error updating feedback")
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveFeedback(string(ft))
	}
	h.appendFeedbackEvent(r.Context(), req, ft)

	writeJSON(w, http.StatusOK, FeedbackResponse{Status: "success", ProfileUpdated: true})
}

// appendFeedbackEvent logs the event for auditing. The profile is already
// updated, so a log failure does not fail the request.
func (h *ScoutHandler) appendFeedbackEvent(ctx context.Context, req FeedbackRequest, ft profile.FeedbackType) {
	if h.feedbackLog == nil {
		return
	}
	evt, err := feedback.NewEvent(req.UserID, req.ItemID, string(ft), req.SessionID)
	if err != nil {
		h.logger.Warn("feedback event invalid", "user_id", req.UserID, "error", err)
		return
	}
	if err := h.feedbackLog.Append(ctx, evt); err != nil {
		h.logger.Error("feedback event append failed", "user_id", req.UserID, "event_id", evt.ID, "error", err)
	}
}

type ProfileResponse struct {
	UserID           string           `json:"user_id"`
	Metadata         *profile.Profile `json:"metadata"`
	PreferencesCount int              `json:"preferences_count"`
	LastUpdated      string           `json:"last_updated"`
}

// Profile returns the stored profile for user_id.
// Route: GET /api/profile?user_id=
func (h *ScoutHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeDetail(w, http.StatusBadRequest, "user_id is required")
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		writeDetail(w, http.StatusNotFound, "User profile not found")
		return
	case err != nil:
		h.logger.Error("profile lookup failed", "user_id", userID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error retrieving profile")
		return
	}

	view := *p
	view.Vector = nil
	writeJSON(w, http.StatusOK, ProfileResponse{
		UserID:           userID,
		Metadata:         &view,
		PreferencesCount: p.PreferencesCount(),
		LastUpdated:      p.LastUpdated,
	})
}

type PredictiveSuggestRequest struct {
	UserID              string   `json:"user_id" validate:"required"`
	ConversationContext string   `json:"conversation_context" validate:"required"`
	DetectedTopic       string   `json:"detected_topic,omitempty"`
	PreviousTopics      []string `json:"previous_topics,omitempty"`
}

// PredictiveSuggest returns at most one contextual suggestion.
// Route: POST /api/predictive_suggest
func (h *ScoutHandler) PredictiveSuggest(w http.ResponseWriter, r *http.Request) {
	var req PredictiveSuggestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.suggester.Suggest(r.Context(), suggest.Request{
		UserID:         req.UserID,
		Context:        req.ConversationContext,
		DetectedTopic:  req.DetectedTopic,
		PreviousTopics: req.PreviousTopics,
	})
	switch {
	case errors.Is(err, suggest.ErrEmptyContext):
		writeDetail(w, http.StatusBadRequest, "conversation_context is required")
		return
	case err != nil:
		h.logger.Error("predictive suggestion failed", "user_id", req.UserID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error generating suggestion")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
