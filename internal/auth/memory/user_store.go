// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

// Package memory provides an in-process auth.UserStore.
package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/noteful/noteful-auth/internal/auth"
)

// UserStore keeps users in a map. Data is lost when the process exits.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]auth.UserRecord
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]auth.UserRecord)}
}

// Insert stores a copy of user.
func (s *UserStore) Insert(_ context.Context, user *auth.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return oops.Code(auth.CodeDuplicateUsername).
			With("username", user.Username).
			Wrap(auth.ErrDuplicateUsername)
	}
	s.users[user.Username] = *user
	return nil
}

// FindByUsername returns a copy of the stored user.
func (s *UserStore) FindByUsername(_ context.Context, username string) (*auth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return &user, nil
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Compile-time interface check.
var _ auth.UserStore = (*UserStore)(nil)
