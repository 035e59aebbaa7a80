// Package auth verifies and issues the HS256 bearer tokens that carry
// participant identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/metaschool/rtcrelay/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl}
}

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verify validates token and returns the participant identity it carries.
// Any defect (bad signature, expiry, missing user_id) maps to
// ErrInvalidToken; callers treat it as an unauthorized outcome.
func (a *Authenticator) Verify(token string) (domain.UserID, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || c.UserID == "" {
		return "", ErrInvalidToken
	}
	return domain.UserID(c.UserID), nil
}

// Issue mints a token for user, valid for the configured TTL. Exposed only
// through the debug endpoint.
func (a *Authenticator) Issue(user domain.UserID) (string, error) {
	now := time.Now()
	c := claims{
		UserID: string(user),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}
