// Package auth signs users up and in against an identity provider and
// verifies the bearer tokens it issues.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/marketbridge/platform/internal/app/domain/identity"
)

var (
	// ErrEmailNotConfirmed replaces the provider's "Email not confirmed" failure.
	ErrEmailNotConfirmed = errors.New("Please confirm your email address before signing in. Check your inbox for the confirmation link.")
	// ErrInvalidCredentials uses the same wording as the hosted provider.
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	// ErrUserExists uses the same wording as the hosted provider.
	ErrUserExists = errors.New("User already registered")
	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("Password should be at least 6 characters")
)

// MinPasswordLength matches the hosted provider's default policy.
const MinPasswordLength = 6

// Provider is an identity provider.
type Provider interface {
	// SignUp creates an identity. The returned session has no access token
	// when the provider requires email confirmation first.
	SignUp(ctx context.Context, email, password string) (identity.Session, error)
	SignIn(ctx context.Context, email, password string) (identity.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (identity.Identity, error)
}

// MapSignInError turns the provider's email-confirmation failure into
// ErrEmailNotConfirmed. The provider reports it only as message text, so the
// match is on the substring. Every other error is returned unchanged.
func MapSignInError(err error) error {
	if err != nil && strings.Contains(err.Error(), "Email not confirmed") {
		return ErrEmailNotConfirmed
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
