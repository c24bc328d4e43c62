// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Token defaults.
const (
	DefaultTokenTTL    = 7 * 24 * time.Hour
	DefaultTokenIssuer = "noteful-auth"
	MinSecretLength    = 32
)

// Claims is the signed token payload. User is the only application claim;
// the registered claims carry subject, issuer and validity window.
type Claims struct {
	User PublicUser `json:"user"`
	jwt.RegisteredClaims
}

// TokenSigner mints and verifies HS256 identity tokens with a process-wide
// secret.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenSigner creates a TokenSigner. secret must be at least
// MinSecretLength bytes and ttl must be positive.
func NewTokenSigner(secret []byte, ttl time.Duration, issuer string) (*TokenSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("min", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("ttl", ttl.String()).
			Errorf("token ttl must be positive")
	}
	if issuer == "" {
		issuer = DefaultTokenIssuer
	}
	return &TokenSigner{
		secret: secret,
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source. Useful for deterministic tests.
func (s *TokenSigner) WithClock(now func() time.Time) *TokenSigner {
	s.now = now
	return s
}

// TTL returns the token lifetime.
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

// Sign mints a token whose claim is user.
func (s *TokenSigner) Sign(user PublicUser) (string, error) {
	now := s.now()
	claims := Claims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return signed, nil
}

// Parse verifies tokenString and returns its claims. Any signature, algorithm,
// issuer or expiry failure yields an error matching ErrInvalidToken.
func (s *TokenSigner) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidToken).
			With("reason", err.Error()).
			Wrap(ErrInvalidToken)
	}
	return claims, nil
}
