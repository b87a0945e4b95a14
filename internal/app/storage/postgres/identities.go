package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/marketbridge/platform/internal/app/domain/identity"
)

const identityColumns = `id, email, email_confirmed, password_hash, created_at`

func (s *Store) CreateIdentity(ctx context.Context, cred identity.Credential) (identity.Credential, error) {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	cred.Email = strings.ToLower(strings.TrimSpace(cred.Email))
	cred.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5)
	`, cred.ID, cred.Email, cred.EmailConfirmed, cred.PasswordHash, cred.CreatedAt)
	if err != nil {
		return identity.Credential{}, mapError(err, "identity", cred.Email)
	}
	return cred, nil
}

func (s *Store) GetIdentity(ctx context.Context, id string) (identity.Credential, error) {
	var cred identity.Credential
	err := s.db.GetContext(ctx, &cred, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return cred, mapError(err, "identity", id)
}

func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (identity.Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var cred identity.Credential
	err := s.db.GetContext(ctx, &cred, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	return cred, mapError(err, "identity", email)
}
