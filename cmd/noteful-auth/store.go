// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/auth/memory"
	"github.com/noteful/noteful-auth/internal/auth/postgres"
	"github.com/noteful/noteful-auth/internal/auth/sqlite"
	"github.com/noteful/noteful-auth/internal/config"
	"github.com/noteful/noteful-auth/internal/store"
	"github.com/noteful/noteful-auth/internal/xdg"
)

// openStore opens the user store selected by cfg.Store and returns a
// function that releases it. For postgres, autoMigrate applies pending
// migrations before the pool is opened; otherwise the schema must already be
// current. A nil newMigrator uses store.NewMigrator.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, autoMigrate bool, newMigrator MigratorFactory) (auth.UserStore, func(), error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, nil, err
	}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory user store; users are lost on exit")
		return memory.NewUserStore(), func() {}, nil

	case config.DriverSQLite:
		if err := xdg.EnsureDir(filepath.Dir(cfg.Store.DSN)); err != nil {
			return nil, nil, err
		}
		users, err := sqlite.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite user store", "path", cfg.Store.DSN)
		return users, func() {
			if err := users.Close(); err != nil {
				logger.Warn("error closing sqlite user store", "error", err)
			}
		}, nil

	default:
		if newMigrator == nil {
			newMigrator = defaultMigratorFactory
		}
		if err := runAutoMigrate(cfg.Store.DSN, newMigrator, autoMigrate, logger); err != nil {
			return nil, nil, err
		}
		pool, err := store.OpenPool(ctx, cfg.Store.DSN, store.ConnectOptions{Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to postgres user store")
		return postgres.NewUserStore(pool), pool.Close, nil
	}
}

// runAutoMigrate brings the schema up to date, or with apply unset only
// verifies that it is.
func runAutoMigrate(databaseURL string, newMigrator MigratorFactory, apply bool, logger *slog.Logger) error {
	migrator, err := newMigrator(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if !apply {
		if err := migrator.CheckCurrent(); err != nil {
			return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "check schema version").Wrap(err)
		}
		return nil
	}
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}
