package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/marketbridge/platform/internal/app/domain/identity"
	"github.com/marketbridge/platform/internal/app/storage"
)

// LocalProvider manages identities in the application's own store. There is
// no mail delivery, so identities are confirmed on creation.
type LocalProvider struct {
	store    storage.IdentityStore
	verifier *Verifier
	cost     int
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates a provider issuing tokens through verifier.
func NewLocalProvider(store storage.IdentityStore, verifier *Verifier) *LocalProvider {
	return &LocalProvider{store: store, verifier: verifier, cost: bcrypt.DefaultCost}
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (identity.Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return identity.Session{}, ErrInvalidCredentials
	}
	if len(password) < MinPasswordLength {
		return identity.Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return identity.Session{}, err
	}

	cred, err := p.store.CreateIdentity(ctx, identity.Credential{
		Identity:     identity.Identity{Email: email, EmailConfirmed: true},
		PasswordHash: string(hash),
	})
	if err != nil {
		if storage.IsConflict(err) {
			return identity.Session{}, ErrUserExists
		}
		return identity.Session{}, err
	}
	return p.session(cred.Identity)
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	cred, err := p.store.GetIdentityByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if storage.IsNotFound(err) {
			return identity.Session{}, ErrInvalidCredentials
		}
		return identity.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return identity.Session{}, ErrInvalidCredentials
	}
	return p.session(cred.Identity)
}

// SignOut revokes the access token.
func (p *LocalProvider) SignOut(_ context.Context, accessToken string) error {
	claims, err := p.verifier.Verify(accessToken)
	if err != nil {
		return err
	}
	p.verifier.Revoke(claims)
	return nil
}

func (p *LocalProvider) GetUser(ctx context.Context, accessToken string) (identity.Identity, error) {
	claims, err := p.verifier.Verify(accessToken)
	if err != nil {
		return identity.Identity{}, err
	}
	cred, err := p.store.GetIdentity(ctx, claims.Subject)
	if err != nil {
		return identity.Identity{}, err
	}
	return cred.Identity, nil
}

func (p *LocalProvider) session(id identity.Identity) (identity.Session, error) {
	token, expiresIn, err := p.verifier.Issue(id)
	if err != nil {
		return identity.Session{}, err
	}
	return identity.Session{AccessToken: token, ExpiresIn: expiresIn, Identity: id}, nil
}
