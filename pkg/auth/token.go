// Package auth issues and verifies the bearer tokens the server optionally
// requires. Single-operator deployments usually run without a secret and
// skip authentication entirely.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenExpiry is how long an issued token stays valid
const DefaultTokenExpiry = 30 * 24 * time.Hour

// ExtractToken pulls the JWT out of an Authorization header value.
// Supports "Bearer <token>" format.
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("empty authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

// TokenAuth signs and verifies operator tokens with a shared secret
type TokenAuth struct {
	secret []byte
	expiry time.Duration
}

// Claims are the token claims the server cares about
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// NewTokenAuth creates a token authority. The secret must be non-empty.
func NewTokenAuth(secret string, expiry time.Duration) (*TokenAuth, error) {
	if secret == "" {
		return nil, errors.New("token secret cannot be empty")
	}
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &TokenAuth{secret: []byte(secret), expiry: expiry}, nil
}

// Issue creates a signed token for a subject
func (a *TokenAuth) Issue(subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			Issuer:    "aiassist",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims
func (a *TokenAuth) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
