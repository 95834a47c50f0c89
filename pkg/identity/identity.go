// Package identity issues and verifies the bearer tokens that carry a
// caller's user id and role.
package identity

import (
	"errors"
	"strings"
	"time"

	"xlsviz/pkg/access"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns a signed token for id with the given role.
func (i *Issuer) Issue(id access.Identity) (string, error) {
	now := i.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})
	return tok.SignedString(i.secret)
}

// FromHeader extracts the token from an "Authorization: Bearer <token>" value.
func FromHeader(h string) (string, error) {
	if !strings.HasPrefix(h, "Bearer ") {
		return "", ErrMissingToken
	}
	tok := strings.TrimSpace(h[len("Bearer "):])
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// Verify checks the signature and expiry of raw and returns the identity it carries.
func (i *Issuer) Verify(raw string) (access.Identity, error) {
	if raw == "" {
		return access.Identity{}, ErrMissingToken
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return access.Identity{}, ErrExpiredToken
		}
		return access.Identity{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return access.Identity{}, ErrInvalidToken
	}
	return access.Identity{ID: c.Subject, Role: c.Role}, nil
}
