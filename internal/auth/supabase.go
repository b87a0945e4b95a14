package auth

import (
	"context"
	"time"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/supabase/client"
)

// SupabaseProvider delegates to the hosted auth service. Its errors are
// returned with the service's message unchanged.
type SupabaseProvider struct {
	client *client.Client
}

var _ Provider = (*SupabaseProvider)(nil)

// NewSupabaseProvider creates a provider over c. c should use the anon key.
func NewSupabaseProvider(c *client.Client) *SupabaseProvider {
	return &SupabaseProvider{client: c}
}

func (p *SupabaseProvider) SignUp(ctx context.Context, email, password string) (identity.Session, error) {
	resp, err := p.client.Auth().SignUp(ctx, normalizeEmail(email), password, nil)
	if err != nil {
		return identity.Session{}, err
	}
	return toSession(resp), nil
}

func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	resp, err := p.client.Auth().SignIn(ctx, normalizeEmail(email), password)
	if err != nil {
		return identity.Session{}, err
	}
	return toSession(resp), nil
}

func (p *SupabaseProvider) SignOut(ctx context.Context, accessToken string) error {
	return p.client.Auth().SignOut(ctx, accessToken)
}

func (p *SupabaseProvider) GetUser(ctx context.Context, accessToken string) (identity.Identity, error) {
	user, err := p.client.Auth().GetUser(ctx, accessToken)
	if err != nil {
		return identity.Identity{}, err
	}
	return toIdentity(user), nil
}

func toSession(resp *client.AuthResponse) identity.Session {
	s := identity.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}
	if resp.User != nil {
		s.Identity = toIdentity(resp.User)
	}
	return s
}

func toIdentity(u *client.User) identity.Identity {
	id := identity.Identity{
		ID:             u.ID,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmedAt != "",
	}
	if t, err := time.Parse(time.RFC3339Nano, u.CreatedAt); err == nil {
		id.CreatedAt = t
	}
	return id
}
