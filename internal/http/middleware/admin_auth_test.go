package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serveAdmin(t *testing.T, mw func(http.Handler) http.Handler, token string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/catalog/items", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := AdminClaimsFromContext(r.Context()); !ok {
			t.Fatalf("expected admin claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec, called := serveAdmin(t, AdminJWT(""), signedAdminToken(t, "secret", ScopeCatalogWrite, time.Minute))
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without calling handler, got %d", rec.Code)
	}
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec, called := serveAdmin(t, AdminJWT("secret"), "")
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json error body, got %q", ct)
	}
}

func TestAdminJWTInvalidToken(t *testing.T) {
	rec, called := serveAdmin(t, AdminJWT("secret"), signedAdminToken(t, "wrong", ScopeCatalogWrite, time.Minute))
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTExpiredToken(t *testing.T) {
	rec, called := serveAdmin(t, AdminJWT("secret"), signedAdminToken(t, "secret", ScopeCatalogWrite, -time.Minute))
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminJWTMissingScope(t *testing.T) {
	rec, called := serveAdmin(t, AdminJWT("secret", ScopeCatalogWrite), signedAdminToken(t, "secret", "catalog:read", time.Minute))
	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	rec, called := serveAdmin(t, AdminJWT("secret", ScopeCatalogWrite), signedAdminToken(t, "secret", "catalog:read "+ScopeCatalogWrite, time.Minute))
	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func signedAdminToken(t *testing.T, secret, scope string, ttl time.Duration) string {
	t.Helper()
	claims := AdminClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "catalog-admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
