package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questions/internal/auth"
	"questions/internal/config"
	"questions/internal/models"
	"questions/internal/permissions"
	"questions/internal/repository"
)

func newAuthService() *auth.Service {
	return auth.NewService(&config.JWTConfig{Secret: "test-secret", Issuer: "questions", Expiration: time.Hour})
}

func echoIdentity(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("X-User", id.Email)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	svc := newAuthService()
	mw := NewAuthMiddleware(svc)
	token, err := svc.GenerateToken(7, "ana@example.org", false)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			mw.Authenticate(echoIdentity(t)).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ana@example.org", rec.Header().Get("X-User"))
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	mw := NewAuthMiddleware(newAuthService())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec := httptest.NewRecorder()
	mw.OptionalAuth(echoIdentity(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, Requests: 2, Duration: time.Minute})
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))

	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1003"))

	now = now.Add(10 * time.Minute)
	rl.cleanup(3 * time.Minute)
	assert.Empty(t, rl.visitors)
}

func TestGetIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:5555"
	assert.Equal(t, "192.0.2.4", getIP(req))
}

func TestCORS_Preflight(t *testing.T) {
	mw := NewCORSMiddleware(&config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.org"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
	})
	called := false
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.org")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type stubComponents map[int64]*models.Component

func (s stubComponents) GetByID(_ context.Context, id int64) (*models.Component, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, repository.ErrComponentNotFound
}

type stubRoles map[int64][]models.SpaceRole

func (s stubRoles) ListForUser(_ context.Context, _ int64, userID int64) ([]models.SpaceRole, error) {
	if userID == 666 {
		return nil, errors.New("db down")
	}
	return s[userID], nil
}

func TestRBAC_RequirePermission(t *testing.T) {
	rbac := NewRBACMiddleware(
		stubComponents{1: {ID: 1, SpaceID: 10}},
		stubRoles{
			2: {{ID: 20, SpaceID: 10, UserID: 2, Role: models.RoleAdmin}},
			3: {{ID: 30, SpaceID: 10, UserID: 3, Role: models.RoleValuator}},
		},
	)

	var seen ComponentActor
	mux := http.NewServeMux()
	mux.Handle("POST /components/{componentID}/answers/publish",
		rbac.RequirePermission(permissions.ActionPublishAnswers)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = GetComponentActor(r)
		})))

	call := func(userID int64, path string, withIdentity bool) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if withIdentity {
			req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: userID}))
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(0, "/components/1/answers/publish", false))
	assert.Equal(t, http.StatusBadRequest, call(2, "/components/x/answers/publish", true))
	assert.Equal(t, http.StatusNotFound, call(2, "/components/9/answers/publish", true))
	assert.Equal(t, http.StatusInternalServerError, call(666, "/components/1/answers/publish", true))
	assert.Equal(t, http.StatusForbidden, call(3, "/components/1/answers/publish", true))

	assert.Equal(t, http.StatusOK, call(2, "/components/1/answers/publish", true))
	assert.Equal(t, int64(2), seen.Actor.UserID)
	assert.True(t, seen.Actor.SpaceAdmin())
	assert.Equal(t, int64(1), seen.Component.ID)
}
