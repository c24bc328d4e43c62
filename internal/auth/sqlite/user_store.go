// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

// Package sqlite implements auth.UserStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/noteful/noteful-auth/internal/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT    PRIMARY KEY,
	username      TEXT    NOT NULL UNIQUE,
	fullname      TEXT    NOT NULL DEFAULT '',
	password_hash TEXT    NOT NULL,
	created_at    INTEGER NOT NULL
)`

// UserStore implements auth.UserStore using SQLite.
type UserStore struct {
	db *sql.DB

	// SQLite allows one writer at a time; serializing inserts here avoids
	// SQLITE_BUSY under concurrent registrations.
	writeLock sync.Mutex
}

// Open opens (creating if needed) the database at path and ensures the
// users table exists.
func Open(ctx context.Context, path string) (*UserStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code("USER_STORE_OPEN_FAILED").Errorf("storage path is required")
	}

	dsn, err := fileDSN(path)
	if err != nil {
		return nil, oops.Code("USER_STORE_OPEN_FAILED").
			With("operation", "resolve path").
			With("path", path).
			Wrap(err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("USER_STORE_OPEN_FAILED").
			With("path", path).
			Wrap(err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, oops.Code("USER_STORE_OPEN_FAILED").
			With("operation", "ping").
			With("path", path).
			Wrap(err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, oops.Code("USER_STORE_OPEN_FAILED").
			With("operation", "create schema").
			With("path", path).
			Wrap(err)
	}

	return &UserStore{db: db}, nil
}

// fileDSN builds a file: URI for path. The path is percent-escaped so
// characters such as '?' and '#' stay part of the file name.
func fileDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(abs),
		RawQuery: url.Values{
			"_pragma": {"busy_timeout(5000)", "journal_mode(WAL)", "synchronous(NORMAL)"},
		}.Encode(),
	}
	return u.String(), nil
}

// Close releases the underlying database.
func (s *UserStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close() //nolint:wrapcheck // close error needs no context
}

// Insert stores a new user.
func (s *UserStore) Insert(ctx context.Context, user *auth.UserRecord) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, fullname, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID.String(),
		user.Username,
		user.Fullname,
		user.PasswordHash,
		user.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(auth.CodeDuplicateUsername).
				With("username", user.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("USER_INSERT_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// FindByUsername retrieves a user by exact username.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*auth.UserRecord, error) {
	var (
		idStr     string
		createdAt int64
		user      auth.UserRecord
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, fullname, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&idStr, &user.Username, &user.Fullname, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var liteErr *msqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// Compile-time interface check.
var _ auth.UserStore = (*UserStore)(nil)
