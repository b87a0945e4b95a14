// Package middleware provides HTTP middleware for the marketplace API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/marketbridge/platform/internal/auth"
	"github.com/marketbridge/platform/internal/errors"
	"github.com/marketbridge/platform/internal/httputil"
	"github.com/marketbridge/platform/pkg/logger"
)

type contextKey string

const tokenKey contextKey = "access_token"

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware provides JWT authentication
type AuthMiddleware struct {
	verifier     TokenVerifier
	logger       *logger.Logger
	skipPaths    map[string]bool
	skipPrefixes []string
}

// NewAuthMiddleware creates a new authentication middleware. Entries of
// skipPaths ending in "/" skip every path below them.
func NewAuthMiddleware(verifier TokenVerifier, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	m := &AuthMiddleware{
		verifier:  verifier,
		logger:    log,
		skipPaths: make(map[string]bool),
	}
	for _, path := range skipPaths {
		if strings.HasSuffix(path, "/") {
			m.skipPrefixes = append(m.skipPrefixes, path)
			continue
		}
		m.skipPaths[path] = true
	}
	return m
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || m.skipped(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.respondError(w, r, errors.InvalidToken(err))
			return
		}

		ctx := logger.WithUserID(r.Context(), claims.Subject)
		if claims.Role != "" {
			ctx = context.WithValue(ctx, logger.RoleKey, claims.Role)
		}
		ctx = context.WithValue(ctx, tokenKey, token)
		if info, ok := ctx.Value(infoKey).(*requestInfo); ok {
			info.userID = claims.Subject
		}

		m.logger.WithContext(ctx).Debug("Authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) skipped(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, prefix := range m.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// bearerToken reads the Authorization header. Websocket upgrades may pass
// the token as the access_token query parameter since browsers cannot set
// headers on them.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if isWebsocketUpgrade(r) {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return token, nil
			}
		}
		return "", errors.Unauthorized("Missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.Unauthorized("Invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// respondError sends an error response
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}
	httputil.WriteError(w, r, serviceErr)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

// GetUserID extracts the authenticated identity id from context.
func GetUserID(ctx context.Context) string {
	return logger.GetUserID(ctx)
}

// GetUserRole extracts the token role from context.
func GetUserRole(ctx context.Context) string {
	return logger.GetRole(ctx)
}

// GetToken returns the bearer token the request was authenticated with.
func GetToken(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey).(string)
	return v
}

// RequireUserID middleware ensures user ID is present in context
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			httputil.Unauthorized(w, r, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
