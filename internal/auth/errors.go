// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package auth

import (
	"errors"
	"math"
	"time"

	"github.com/samber/oops"
)

// Store-boundary sentinels. UserStore implementations wrap these so callers
// can match them with errors.Is regardless of the backend.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUsername is returned when the username is already taken.
	ErrDuplicateUsername = errors.New("The username already exists")
)

// Authentication failures. Both are deliberately generic so a caller cannot
// tell a missing user from a wrong password.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ErrTooManyAttempts is returned while a username is locked out after
// repeated login failures.
var ErrTooManyAttempts = errors.New("Too many failed login attempts")

// ErrHashing marks an internal failure of the hashing engine.
var ErrHashing = errors.New("password hashing failed")

// ErrInvalidToken is returned for tokens that fail signature, algorithm,
// issuer or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Error codes attached to oops errors returned by this package.
const (
	CodeDuplicateUsername  = "AUTH_DUPLICATE_USERNAME"
	CodeMissingCredentials = "AUTH_MISSING_CREDENTIALS"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeHashingFailed      = "AUTH_HASHING_FAILED"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeStoreFailed        = "AUTH_STORE_FAILED"
	CodeLoginFailed        = "AUTH_LOGIN_FAILED"
	CodeTooManyAttempts    = "AUTH_TOO_MANY_ATTEMPTS"
)

// DuplicateUsername builds the error returned when registration loses the
// uniqueness race for username.
func DuplicateUsername(username string) error {
	return oops.Code(CodeDuplicateUsername).
		With("username", username).
		Wrap(ErrDuplicateUsername)
}

func missingCredentials() error {
	return oops.Code(CodeMissingCredentials).Wrap(ErrMissingCredentials)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

func tooManyAttempts(remaining time.Duration) error {
	return oops.Code(CodeTooManyAttempts).
		With("retry_after_seconds", int(math.Ceil(remaining.Seconds()))).
		Wrap(ErrTooManyAttempts)
}
