package identity

import "time"

// Identity is an authenticated account as known to the auth provider.
type Identity struct {
	ID             string    `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	EmailConfirmed bool      `json:"email_confirmed" db:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Credential is a locally stored identity with its password hash.
type Credential struct {
	Identity
	PasswordHash string `json:"-" db:"password_hash"`
}

// Session is the result of a successful sign-in. AccessToken is empty when
// the provider still requires email confirmation.
type Session struct {
	AccessToken  string   `json:"access_token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int      `json:"expires_in,omitempty"`
	Identity     Identity `json:"user"`
}
