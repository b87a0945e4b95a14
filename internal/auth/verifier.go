package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marketbridge/platform/internal/app/domain/identity"
)

// ErrTokenRevoked is returned for a signed-out token.
var ErrTokenRevoked = errors.New("token has been revoked")

// Claims are the bearer token claims. Subject is the identity id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens and, for locally issued tokens,
// issues and revokes them.
type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

// NewVerifier creates a verifier for tokens signed with secret. An empty
// issuer accepts any issuer.
func NewVerifier(secret, issuer string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Verifier{
		secret:  []byte(secret),
		issuer:  issuer,
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
}

// Issue signs an access token for id. It returns the token and its lifetime in seconds.
func (v *Verifier) Issue(id identity.Identity) (string, int, error) {
	now := v.now()
	claims := Claims{
		Email: id.Email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return token, int(v.ttl.Seconds()), nil
}

// Verify parses and validates token.
func (v *Verifier) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	if claims.ID != "" && v.isRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke rejects token until it would have expired anyway.
func (v *Verifier) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expiry := v.now().Add(v.ttl)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	v.mu.Lock()
	v.revoked[claims.ID] = expiry
	v.mu.Unlock()
}

// PurgeRevoked forgets revocations of tokens that have expired. It returns
// the number removed.
func (v *Verifier) PurgeRevoked() int {
	now := v.now()
	v.mu.Lock()
	defer v.mu.Unlock()

	removed := 0
	for id, expiry := range v.revoked {
		if !expiry.After(now) {
			delete(v.revoked, id)
			removed++
		}
	}
	return removed
}

func (v *Verifier) isRevoked(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.revoked[id]
	return ok
}
