package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/daman-app/daman/internal/middleware"
)

func newTestAuthHandler(t *testing.T) (*AuthHandler, *middleware.JWTAuthMiddleware) {
	t.Helper()
	hash, err := middleware.HashPassword("review-secret")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     "reviewer",
		AdminPasswordHash: hash,
		JWTSecret:         "test-secret",
		JWTExpiryHours:    24,
	})
	return NewAuthHandler(jwtAuth), jwtAuth
}

func postLogin(t *testing.T, handler *AuthHandler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	mux := http.NewServeMux()
	handler.SetupRoutes(mux)
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	handler, jwtAuth := newTestAuthHandler(t)

	rec := postLogin(t, handler, LoginRequest{Username: "reviewer", Password: "review-secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.Username != "reviewer" {
		t.Errorf("username = %q, want reviewer", resp.Username)
	}

	claims, err := jwtAuth.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if claims.Username != "reviewer" {
		t.Errorf("claims username = %q, want reviewer", claims.Username)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	handler, _ := newTestAuthHandler(t)

	rec := postLogin(t, handler, LoginRequest{Username: "reviewer", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_WrongUsername(t *testing.T) {
	handler, _ := newTestAuthHandler(t)

	rec := postLogin(t, handler, LoginRequest{Username: "intruder", Password: "review-secret"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	handler, _ := newTestAuthHandler(t)

	rec := postLogin(t, handler, LoginRequest{Username: "reviewer"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestVerify(t *testing.T) {
	handler, _ := newTestAuthHandler(t)
	mux := http.NewServeMux()
	handler.SetupRoutes(mux)

	// Without an authenticated context.
	req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	// With the username the JWT middleware would have injected.
	req = httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	ctx := context.WithValue(req.Context(), middleware.UserContextKey, "reviewer")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
