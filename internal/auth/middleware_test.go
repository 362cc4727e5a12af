package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMiddlewarePassesThroughWithoutToken(t *testing.T) {
	svc := NewService("test-secret-1234567890", time.Hour, newMemoryStore())

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing auth header"},
		{name: "non bearer auth header", header: "Basic abc123"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nextCalled := false
			handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				if claims := GetClaims(r.Context()); claims != nil {
					t.Fatalf("expected nil claims, got %+v", claims)
				}
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if !nextCalled {
				t.Fatal("expected next handler to be called")
			}
			if rec.Code != http.StatusNoContent {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
			}
		})
	}
}

func TestMiddlewareRejectsInvalidBearerToken(t *testing.T) {
	svc := NewService("test-secret-1234567890", time.Hour, newMemoryStore())

	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called for invalid bearer token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "invalid token") {
		t.Fatalf("expected invalid token response body, got %q", rec.Body.String())
	}
}

func TestMiddlewareIgnoresInvalidCookie(t *testing.T) {
	svc := NewService("test-secret-1234567890", time.Hour, newMemoryStore())

	nextCalled := false
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		if GetClaims(r.Context()) != nil {
			t.Fatal("expected nil claims for stale cookie")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatal("expected next handler to be called")
	}
}

func TestMiddlewareAddsClaimsFromBearerAndCookie(t *testing.T) {
	svc := NewService("test-secret-1234567890", time.Hour, newMemoryStore())
	token, _, err := svc.CreateSession(context.Background(), 99)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tests := []struct {
		name    string
		prepare func(r *http.Request)
	}{
		{name: "bearer", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }},
		{name: "cookie", prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token}) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims := GetClaims(r.Context())
				if claims == nil {
					t.Fatal("expected claims in request context")
				}
				if claims.UserID != 99 {
					t.Fatalf("claims.UserID = %d, want 99", claims.UserID)
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestMiddlewareStoreFailureIs500(t *testing.T) {
	store := newMemoryStore()
	svc := NewService("test-secret-1234567890", time.Hour, store)
	token, _, err := svc.CreateSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	store.getErr = errors.New("connection refused")

	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called when the store fails")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestRequireAuthRejectsUnauthenticatedRequests(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthAllowsAuthenticatedRequests(t *testing.T) {
	nextCalled := false
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: 7}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Fatal("expected next handler to be called")
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", time.Now().Add(time.Hour), true)
	ClearSessionCookie(rec, false)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("cookies = %d, want 2", len(cookies))
	}
	set := cookies[0]
	if set.Name != SessionCookieName || set.Value != "tok" {
		t.Fatalf("unexpected session cookie %+v", set)
	}
	if !set.HttpOnly || !set.Secure || set.SameSite != http.SameSiteLaxMode {
		t.Fatalf("session cookie missing flags: %+v", set)
	}
	if cookies[1].MaxAge >= 0 {
		t.Fatalf("cleared cookie MaxAge = %d, want negative", cookies[1].MaxAge)
	}
}
