// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/codes"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// LoginRequest carries submitted credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Issuer authenticates credentials and mints identity tokens.
type Issuer struct {
	users    UserStore
	hashes   *HashPool
	signer   *TokenSigner
	throttle *LoginThrottle
	logger   *slog.Logger
}

// NewIssuer creates an Issuer that logs through slog.Default().
func NewIssuer(users UserStore, hashes *HashPool, signer *TokenSigner) (*Issuer, error) {
	return NewIssuerWithLogger(users, hashes, signer, slog.Default())
}

// NewIssuerWithLogger creates an Issuer with an explicit logger.
func NewIssuerWithLogger(users UserStore, hashes *HashPool, signer *TokenSigner, logger *slog.Logger) (*Issuer, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user store is required")
	}
	if hashes == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("hash pool is required")
	}
	if signer == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token signer is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Issuer{users: users, hashes: hashes, signer: signer, logger: logger}, nil
}

// WithThrottle enables per-username lockout after repeated failures.
// A nil throttle disables it.
func (i *Issuer) WithThrottle(t *LoginThrottle) *Issuer {
	i.throttle = t
	return i
}

// Login verifies req and returns a signed token for the matching user.
//
// Empty fields yield ErrMissingCredentials. An unknown username and a wrong
// password both yield ErrInvalidCredentials, after the same amount of
// hashing work. A locked-out username yields ErrTooManyAttempts.
func (i *Issuer) Login(ctx context.Context, req LoginRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "Issuer.Login")
	defer span.End()

	if req.Username == "" || req.Password == "" {
		span.SetStatus(codes.Error, "missing credentials")
		return "", missingCredentials()
	}

	if state := i.throttle.Check(req.Username); state.IsLockedOut {
		span.SetStatus(codes.Error, "locked out")
		i.logger.InfoContext(ctx, "login rejected: locked out", "username", req.Username)
		return "", tooManyAttempts(state.LockoutRemaining)
	}

	user, lookupErr := i.users.FindByUsername(ctx, req.Username)

	targetHash := dummyPasswordHash
	userExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			span.RecordError(lookupErr)
			span.SetStatus(codes.Error, "lookup failed")
			return "", oops.Code(CodeLoginFailed).
				With("operation", "find user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify, even for unknown users, so both rejections cost the same.
	valid, err := i.hashes.Verify(ctx, req.Password, targetHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		return "", oops.Code(CodeLoginFailed).
			With("operation", "verify password").
			Wrap(err)
	}

	if !userExists || !valid {
		span.SetStatus(codes.Error, "invalid credentials")
		i.logger.DebugContext(ctx, "login rejected", "username", req.Username)
		if state := i.throttle.RecordFailure(req.Username); state.IsLockedOut {
			i.logger.WarnContext(ctx, "username locked out", "username", req.Username)
		}
		return "", invalidCredentials()
	}

	token, err := i.signer.Sign(user.Public())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign failed")
		return "", oops.Code(CodeLoginFailed).
			With("operation", "sign token").
			Wrap(err)
	}

	i.throttle.RecordSuccess(req.Username)
	i.logger.InfoContext(ctx, "token issued", "user_id", user.ID.String())
	return token, nil
}

// Refresh exchanges a valid token for a new one carrying the same user claim
// and a fresh expiry.
func (i *Issuer) Refresh(ctx context.Context, token string) (string, error) {
	_, span := tracer.Start(ctx, "Issuer.Refresh")
	defer span.End()

	claims, err := i.signer.Parse(token)
	if err != nil {
		span.SetStatus(codes.Error, "invalid token")
		return "", err
	}

	refreshed, err := i.signer.Sign(claims.User)
	if err != nil {
		span.RecordError(err)
		return "", oops.Code(CodeLoginFailed).
			With("operation", "sign token").
			Wrap(err)
	}
	return refreshed, nil
}

// Verify parses token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	return i.signer.Parse(token)
}
