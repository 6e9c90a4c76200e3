package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	"github.com/scoutlabs/pinecone-scout/internal/feedback"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

type stubImporter struct {
	got []catalog.Product
	res catalog.Result
}

func (s *stubImporter) ImportProducts(ctx context.Context, products []catalog.Product) catalog.Result {
	s.got = products
	return s.res
}

func TestAdminImportProducts(t *testing.T) {
	imp := &stubImporter{res: catalog.Result{Succeeded: 1, Failed: 1, Errors: []error{errors.New("embed batch failed")}}}
	h := NewAdminCatalogHandler(imp, nil, logging.Discard())

	rec := postJSON(t, h.ImportProducts, "/admin/catalog/items", `{"products":[
		{"item_id":"tv-1","name":"The Frame","category":"televisions","price":1999,"description":"Art mode TV"},
		{"item_id":"tv-2","name":"Canvas","category":"televisions","price":899,"description":"Budget art TV"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"succeeded":1,"failed":1,"errors":["embed batch failed"]}`, rec.Body.String())
	require.Len(t, imp.got, 2)
	assert.Equal(t, "tv-2", imp.got[1].ItemID)
}

func TestAdminImportProducts_AllFailed(t *testing.T) {
	imp := &stubImporter{res: catalog.Result{Failed: 1, Errors: []error{errors.New("bad")}}}
	h := NewAdminCatalogHandler(imp, nil, logging.Discard())

	rec := postJSON(t, h.ImportProducts, "/admin/catalog/items", `{"products":[{"item_id":"x","name":"X","category":"c","price":1,"description":"d"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminImportProducts_Validation(t *testing.T) {
	imp := &stubImporter{}
	h := NewAdminCatalogHandler(imp, nil, logging.Discard())

	rec := postJSON(t, h.ImportProducts, "/admin/catalog/items", `{"products":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "products must be at least 1", decodeBody(t, rec)["detail"])

	rec = postJSON(t, h.ImportProducts, "/admin/catalog/items", `{"products":[{"item_id":"x","category":"c","price":-5,"description":"d"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeBody(t, rec)["detail"].(string)
	assert.Contains(t, detail, "products[0].name is required")
	assert.Contains(t, detail, "products[0].price must be at least 0")
	assert.Nil(t, imp.got)
}

func TestAdminImportProducts_NotConfigured(t *testing.T) {
	h := NewAdminCatalogHandler(nil, nil, logging.Discard())
	rec := postJSON(t, h.ImportProducts, "/admin/catalog/items", `{"products":[]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminListFeedback(t *testing.T) {
	repo := feedback.NewInMemoryRepository()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, repo.Append(context.Background(), &feedback.Event{
			ID:           fmt.Sprintf("e%d", i),
			UserID:       "u1",
			ItemID:       fmt.Sprintf("item-%d", i),
			FeedbackType: "like",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	h := NewAdminCatalogHandler(nil, repo, logging.Discard())

	rec := httptest.NewRecorder()
	h.ListFeedback(rec, httptest.NewRequest(http.MethodGet, "/admin/feedback?user_id=u1&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	events := body["events"].([]any)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].(map[string]any)["id"])
	assert.Equal(t, "e1", events[1].(map[string]any)["id"])
}

func TestAdminListFeedback_Errors(t *testing.T) {
	h := NewAdminCatalogHandler(nil, feedback.NewInMemoryRepository(), logging.Discard())

	rec := httptest.NewRecorder()
	h.ListFeedback(rec, httptest.NewRequest(http.MethodGet, "/admin/feedback", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ListFeedback(rec, httptest.NewRequest(http.MethodGet, "/admin/feedback?user_id=u1&limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ListFeedback(rec, httptest.NewRequest(http.MethodGet, "/admin/feedback?user_id=nobody", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"nobody","events":[]}`, rec.Body.String())

	h = NewAdminCatalogHandler(nil, failingFeedbackLog{}, logging.Discard())
	rec = httptest.NewRecorder()
	h.ListFeedback(rec, httptest.NewRequest(http.MethodGet, "/admin/feedback?user_id=u1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
