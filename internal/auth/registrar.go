// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/noteful/noteful-auth/internal/auth")

// Registrar creates user accounts.
type Registrar struct {
	users  UserStore
	hashes *HashPool
	logger *slog.Logger
}

// NewRegistrar creates a Registrar that logs through slog.Default().
func NewRegistrar(users UserStore, hashes *HashPool) (*Registrar, error) {
	return NewRegistrarWithLogger(users, hashes, slog.Default())
}

// NewRegistrarWithLogger creates a Registrar with an explicit logger.
func NewRegistrarWithLogger(users UserStore, hashes *HashPool, logger *slog.Logger) (*Registrar, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user store is required")
	}
	if hashes == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("hash pool is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Registrar{users: users, hashes: hashes, logger: logger}, nil
}

// Register validates payload, hashes the password and stores a new user.
//
// A *ValidationError is returned unchanged. A lost uniqueness race returns an
// error matching ErrDuplicateUsername. Nothing is written unless validation
// and hashing both succeed.
func (r *Registrar) Register(ctx context.Context, payload map[string]any) (*PublicUser, error) {
	ctx, span := tracer.Start(ctx, "Registrar.Register")
	defer span.End()

	in, err := ValidateRegistration(payload)
	if err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	digest, err := r.hashes.Hash(ctx, in.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hashing failed")
		return nil, oops.Code(CodeHashingFailed).
			With("operation", "hash password").
			Wrap(err)
	}

	user := &UserRecord{
		ID:           ulid.Make(),
		Username:     in.Username,
		Fullname:     in.Fullname,
		PasswordHash: digest,
		CreatedAt:    time.Now().UTC(),
	}

	if err := r.users.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			span.SetStatus(codes.Error, "duplicate username")
			r.logger.InfoContext(ctx, "registration rejected: username taken", "username", in.Username)
			return nil, DuplicateUsername(in.Username)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store insert failed")
		return nil, oops.Code(CodeStoreFailed).
			With("operation", "insert user").
			With("username", in.Username).
			Wrap(err)
	}

	r.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"username", user.Username,
	)

	public := user.Public()
	return &public, nil
}
