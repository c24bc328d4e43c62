// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/config"
	"github.com/noteful/noteful-auth/internal/observability"
	"github.com/noteful/noteful-auth/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// StoreOpener opens the configured user store.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger, autoMigrate bool) (auth.UserStore, func(), error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory binds the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.StoreOpener == nil {
		d.StoreOpener = func(ctx context.Context, cfg *config.Config, logger *slog.Logger, autoMigrate bool) (auth.UserStore, func(), error) {
			return openStore(ctx, cfg, logger, autoMigrate, nil)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
	return d
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// AutoMigrator is the subset of store.Migrator serve uses at startup:
// Up when migrating, CheckCurrent when --skip-migrate is set.
type AutoMigrator interface {
	Up() error
	CheckCurrent() error
	Close() error
}

// Migrator wraps the methods used by the migrate command.
type Migrator interface {
	AutoMigrator
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
}

// MigratorFactory creates a Migrator for a postgres URL.
type MigratorFactory func(databaseURL string) (Migrator, error)

func defaultMigratorFactory(databaseURL string) (Migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}
