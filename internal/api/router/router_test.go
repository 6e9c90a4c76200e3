package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	"github.com/scoutlabs/pinecone-scout/internal/feedback"
	"github.com/scoutlabs/pinecone-scout/internal/http/handlers"
	httpmiddleware "github.com/scoutlabs/pinecone-scout/internal/http/middleware"
	"github.com/scoutlabs/pinecone-scout/internal/profile"
	"github.com/scoutlabs/pinecone-scout/internal/recommend"
	"github.com/scoutlabs/pinecone-scout/internal/suggest"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

const testAdminSecret = "router-secret"

type noopRecommender struct{}

func (noopRecommender) Recommend(ctx context.Context, userID, query string, topK int) (*recommend.Response, error) {
	return &recommend.Response{Recommendations: []recommend.Recommendation{}}, nil
}

type memoryProfiles struct{}

func (memoryProfiles) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	return nil, profile.ErrProfileNotFound
}

func (memoryProfiles) ApplyFeedback(ctx context.Context, userID, itemID string, ft profile.FeedbackType) (*profile.Profile, error) {
	return &profile.Profile{UserID: userID}, nil
}

type emptySuggester struct{}

func (emptySuggester) Suggest(ctx context.Context, req suggest.Request) (*suggest.Response, error) {
	return &suggest.Response{}, nil
}

type countingImporter struct{ calls int }

func (c *countingImporter) ImportProducts(ctx context.Context, products []catalog.Product) catalog.Result {
	c.calls++
	return catalog.Result{Succeeded: len(products)}
}

func newTestRouter(t *testing.T, limiter *httpmiddleware.RateLimiter, importer *countingImporter) http.Handler {
	t.Helper()

	logger := logging.Discard()
	feedbackLog := feedback.NewInMemoryRepository()
	scout := handlers.NewScoutHandler(handlers.ScoutConfig{
		Recommender: noopRecommender{},
		Profiles:    memoryProfiles{},
		Suggester:   emptySuggester{},
		FeedbackLog: feedbackLog,
		Logger:      logger,
	})

	cfg := &Config{
		Logger:             logger,
		Scout:              scout,
		AdminCatalog:       handlers.NewAdminCatalogHandler(importer, feedbackLog, logger),
		AdminAuthSecret:    testAdminSecret,
		MetricsHandler:     promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"https://shop.example.com"},
		RateLimiter:        limiter,
	}
	return New(cfg)
}

func adminToken(t *testing.T, scope string) string {
	t.Helper()
	claims := httpmiddleware.AdminClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAdminSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, &countingImporter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp["status"])
	}
	if rr.Header().Get(httpmiddleware.RequestIDHeader) == "" {
		t.Errorf("expected request id header on response")
	}
}

func TestRouterRootAndMetrics(t *testing.T) {
	router := newTestRouter(t, nil, &countingImporter{})

	for _, path := range []string{"/", "/metrics"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestRouterPredictiveSuggestEndpoint(t *testing.T) {
	router := newTestRouter(t, nil, &countingImporter{})

	body := []byte(`{"user_id":"u1","conversation_context":"hello there"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/predictive_suggest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["suggestion"] != nil {
		t.Fatalf("expected null suggestion, got %v", resp["suggestion"])
	}
}

func TestRouterRejectsNonJSONBody(t *testing.T) {
	router := newTestRouter(t, nil, &countingImporter{})

	req := httptest.NewRequest(http.MethodPost, "/api/recommend", bytes.NewReader([]byte("user_id=u1")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestRouterProfileNotFound(t *testing.T) {
	router := newTestRouter(t, nil, &countingImporter{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/profile?user_id=ghost", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestRouterRateLimitsAPI(t *testing.T) {
	limiter := httpmiddleware.NewRateLimiter(1, 1)
	t.Cleanup(limiter.Stop)
	router := newTestRouter(t, limiter, &countingImporter{})

	codes := make([]int, 0, 2)
	for range 2 {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/profile?user_id=ghost", nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusNotFound || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [404 429], got %v", codes)
	}

	// Health stays outside the limiter.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health to bypass rate limit, got %d", rr.Code)
	}
}

func TestRouterAdminRequiresScopedToken(t *testing.T) {
	importer := &countingImporter{}
	router := newTestRouter(t, nil, importer)
	body := `{"products":[{"item_id":"tv-1","name":"The Frame","category":"televisions","price":1999,"description":"Art TV"}]}`

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "wrong scope", token: adminToken(t, "feedback:read"), want: http.StatusForbidden},
		{name: "catalog writer", token: adminToken(t, httpmiddleware.ScopeCatalogWrite), want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/catalog/items", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
	if importer.calls != 1 {
		t.Fatalf("expected one import, got %d", importer.calls)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router := newTestRouter(t, nil, &countingImporter{})

	req := httptest.NewRequest(http.MethodOptions, "/api/recommend", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
}
