package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/internal/app/metrics"
	"github.com/marketbridge/platform/internal/auth"
	"github.com/marketbridge/platform/internal/httputil"
	"github.com/marketbridge/platform/pkg/logger"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func newAuth(t *testing.T) (*AuthMiddleware, *auth.Verifier) {
	t.Helper()
	verifier := auth.NewVerifier("secret", "test", time.Hour)
	return NewAuthMiddleware(verifier, logger.NewDiscard(), []string{"/healthz", "/media/"}), verifier
}

func TestAuthMiddlewareSkipPaths(t *testing.T) {
	m, _ := newAuth(t)
	handler := m.Handler(http.HandlerFunc(okHandler))

	for _, path := range []string{"/healthz", "/media/avatars/u/x.png"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	m, _ := newAuth(t)
	handler := m.Handler(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body httputil.ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	m, verifier := newAuth(t)
	token, _, err := verifier.Issue(identity.Identity{ID: "user-123", Email: "a@b.c"})
	require.NoError(t, err)

	var gotUser, gotRole, gotToken string
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotRole = GetUserRole(r.Context())
		gotToken = GetToken(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-123", gotUser)
	assert.Equal(t, "authenticated", gotRole)
	assert.Equal(t, token, gotToken)
}

func TestAuthMiddlewareWebsocketQueryToken(t *testing.T) {
	m, verifier := newAuth(t)
	token, _, _ := verifier.Issue(identity.Identity{ID: "user-123"})
	handler := m.Handler(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws/notifications?access_token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "query token needs an upgrade request")

	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRevokedToken(t *testing.T) {
	m, verifier := newAuth(t)
	token, _, _ := verifier.Issue(identity.Identity{ID: "user-123"})
	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	verifier.Revoke(claims)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Handler(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	cors := NewCORSMiddleware([]string{"https://app.example.com", ".example.org"})
	handler := cors.Handler(http.HandlerFunc(okHandler))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://app.example.com", true},
		{"https://www.example.org", true},
		{"https://evil.com", false},
		{"https://app.example.com.evil.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if tt.allowed {
			assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		} else {
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.True(t, cors.Allows(""), "same-origin requests carry no Origin")
	ws := httptest.NewRequest(http.MethodGet, "/api/v1/ws/notifications", nil)
	ws.Header.Set("Origin", "https://evil.com")
	assert.False(t, cors.CheckOrigin(ws))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.NewDiscard())
	handler := rl.Handler(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, logger.NewDiscard())
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.getLimiter("old")

	now = now.Add(limiterIdle + time.Minute)
	rl.getLimiter("fresh")

	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.Len())
}

func TestTracingMiddlewareSetsTraceID(t *testing.T) {
	var seen string
	handler := NewTracingMiddleware(logger.NewDiscard()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.GetTraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(TraceHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(TraceHeader))
}

func TestRecovery(t *testing.T) {
	handler := Recovery(logger.NewDiscard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsMiddlewareRecordsStatus(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/experts/e-1/requests", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var found bool
	for _, line := range strings.Split(scrape.Body.String(), "\n") {
		if strings.HasPrefix(line, "marketplace_http_requests_total{") &&
			strings.Contains(line, `path="/api/v1/experts/:id/requests"`) &&
			strings.Contains(line, `status="202"`) {
			found = true
		}
	}
	assert.True(t, found, scrape.Body.String())
}
