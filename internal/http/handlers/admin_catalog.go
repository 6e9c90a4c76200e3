package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	"github.com/scoutlabs/pinecone-scout/internal/feedback"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

const (
	defaultFeedbackLimit = 50
	maxFeedbackLimit     = 500
)

// ProductImporter embeds and stores catalog products.
type ProductImporter interface {
	ImportProducts(ctx context.Context, products []catalog.Product) catalog.Result
}

// AdminCatalogHandler serves the operator endpoints behind AdminJWT.
type AdminCatalogHandler struct {
	importer    ProductImporter
	feedbackLog feedback.Repository
	logger      *logging.Logger
}

func NewAdminCatalogHandler(importer ProductImporter, feedbackLog feedback.Repository, logger *logging.Logger) *AdminCatalogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminCatalogHandler{importer: importer, feedbackLog: feedbackLog, logger: logger}
}

type ImportProductsRequest struct {
	Products []catalog.Product `json:"products" validate:"required,min=1,max=500,dive"`
}

type ImportProductsResponse struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// ImportProducts upserts a batch of products into the items index.
// Route: POST /admin/catalog/items
func (h *AdminCatalogHandler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeDetail(w, http.StatusServiceUnavailable, "catalog import is not configured")
		return
	}
	var req ImportProductsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res := h.importer.ImportProducts(r.Context(), req.Products)
	errs := make([]string, 0, len(res.Errors))
	for _, err := range res.Errors {
		errs = append(errs, err.Error())
	}
	h.logger.Info("catalog import", "submitted", len(req.Products), "succeeded", res.Succeeded, "failed", res.Failed)

	status := http.StatusOK
	if res.Succeeded == 0 && res.Failed > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, ImportProductsResponse{Succeeded: res.Succeeded, Failed: res.Failed, Errors: errs})
}

// ListFeedback returns a user's recent feedback events, newest first.
// Route: GET /admin/feedback?user_id=&limit=
func (h *AdminCatalogHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	if h.feedbackLog == nil {
		writeDetail(w, http.StatusServiceUnavailable, "feedback log is not configured")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeDetail(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := defaultFeedbackLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeDetail(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxFeedbackLimit)
	}

	events, err := h.feedbackLog.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("feedback list failed", "user_id", userID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Error listing feedback")
		return
	}
	if events == nil {
		events = []feedback.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "events": events})
}
