// Package auth resolves the calling user from an Authorization header.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken  = errors.New("missing authentication token")
	ErrInvalidHeader = errors.New("authorization header must be 'Bearer <token>'")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingUserID = errors.New("token carries no user id")
)

// userIDClaims are checked in order; the first non-empty string wins.
var userIDClaims = []string{"user_id", "userId", "sub", "id"}

type Authenticator struct {
	secret []byte
}

// NewAuthenticator verifies HS256 tokens signed with secret. An empty secret
// turns verification off and the bearer token itself becomes the user id.
func NewAuthenticator(secret string) *Authenticator {
	a := &Authenticator{}
	if secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

// Verifying reports whether tokens are checked as JWTs.
func (a *Authenticator) Verifying() bool { return len(a.secret) > 0 }

// UserID extracts the user id from a "Bearer <token>" header value.
func (a *Authenticator) UserID(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	if !a.Verifying() {
		return token, nil
	}
	return a.userIDFromJWT(token)
}

func (a *Authenticator) userIDFromJWT(token string) (string, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}

	for _, name := range userIDClaims {
		if v, ok := claims[name].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrMissingUserID
}
