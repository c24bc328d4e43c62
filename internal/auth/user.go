// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// UserRecord is a stored user account. PasswordHash and CreatedAt never leave
// the store boundary; use Public for anything shown to a client.
type UserRecord struct {
	ID           ulid.ULID
	Username     string
	Fullname     string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the sanitized projection of a UserRecord. It is both the
// registration response body and the token claim.
type PublicUser struct {
	ID       ulid.ULID `json:"id"`
	Username string    `json:"username"`
	Fullname string    `json:"fullname"`
}

// Public returns the sanitized projection of the record.
func (u *UserRecord) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Fullname: u.Fullname,
	}
}

// UserStore manages user persistence.
type UserStore interface {
	// Insert stores a new user. It returns an error matching
	// ErrDuplicateUsername if the username exists; the check and the write
	// must be atomic.
	Insert(ctx context.Context, user *UserRecord) error

	// FindByUsername retrieves a user by exact username.
	// Returns an error matching ErrNotFound if no such user exists.
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
}
