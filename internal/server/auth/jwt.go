// Package auth issues and verifies the gateway's session tokens.
//
// Tokens are HS256 JWTs carrying the user id and username. Each token also
// carries a random id (jti) so a Denylist can revoke it before it expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrSigningKey means the authenticator was built without a signing key.
var ErrSigningKey = errors.New("empty token signing key")

// DefaultValidity is the lifetime of issued tokens.
const DefaultValidity = time.Hour

// Claims is the token payload: registered claims plus the user identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Identity is the verified caller bound to a request.
type Identity struct {
	UserID    string
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// Authenticator signs and verifies session tokens.
type Authenticator struct {
	secret   []byte
	validity time.Duration
	denylist Denylist
	now      func() time.Time
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithDenylist replaces the default in-memory deny-list.
func WithDenylist(d Denylist) Option {
	return func(a *Authenticator) { a.denylist = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator returns an Authenticator signing with secret. A zero
// validity means DefaultValidity.
func NewAuthenticator(secret []byte, validity time.Duration, opts ...Option) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, ErrSigningKey
	}
	if validity == 0 {
		validity = DefaultValidity
	}

	a := &Authenticator{
		secret:   secret,
		validity: validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.denylist == nil {
		a.denylist = NewMemoryDenylist()
	}
	return a, nil
}

// IssueToken returns a signed token for the given user.
func (a *Authenticator) IssueToken(userID, username string) (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.validity)),
		},
		UserID:   userID,
		Username: username,
	})

	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken checks signature, algorithm, expiry and revocation.
//
// An empty token yields common.ErrUnauthenticated. Every other failure
// matches common.ErrInvalidToken; expiry also matches common.ErrTokenExpired.
func (a *Authenticator) VerifyToken(ctx context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, common.ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Identity{}, common.ErrInvalidToken
	}

	if claims.ID != "" {
		revoked, err := a.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, fmt.Errorf("check deny-list: %w", err)
		}
		if revoked {
			return Identity{}, fmt.Errorf("%w: token revoked", common.ErrInvalidToken)
		}
	}

	id := Identity{UserID: claims.UserID, Username: claims.Username, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Revoke deny-lists the token behind id until it would have expired anyway.
func (a *Authenticator) Revoke(ctx context.Context, id Identity) error {
	if id.TokenID == "" {
		return common.ErrInvalidToken
	}
	return a.denylist.Revoke(ctx, id.TokenID, id.ExpiresAt)
}
