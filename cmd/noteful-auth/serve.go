// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/config"
	"github.com/noteful/noteful-auth/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	skipMigrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the registration and login API, plus the metrics and health
endpoints when metrics-addr is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, opts, cmd, nil)
		},
	}

	cmd.Flags().BoolVar(&opts.skipMigrate, "skip-migrate", false, "do not apply postgres migrations at startup; require the schema to be current")
	return cmd
}

// runServeWithDeps runs the API until ctx is cancelled, a signal arrives or a
// server fails. Nil deps use default implementations.
func runServeWithDeps(ctx context.Context, cfg *config.Config, opts *serveOptions, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := setupLogging(cfg)
	logger.Info("starting noteful-auth",
		"http_addr", cfg.HTTP.Addr,
		"store_driver", cfg.Store.Driver,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready.Load)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer stopWithTimeout(logger, "observability server", obsServer.Stop)
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	users, closeStore, err := deps.StoreOpener(ctx, cfg, logger, !opts.skipMigrate)
	if err != nil {
		return oops.With("operation", "open user store").Wrap(err)
	}
	defer closeStore()

	handler, err := buildHandler(cfg, users, obsServer, logger)
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, apiErrCh, "http")

	ready.Store(true)
	cmd.Println("noteful-auth listening on", listener.Addr().String())
	logger.Info("noteful-auth ready", "addr", listener.Addr().String())

	<-ctx.Done()
	ready.Store(false)
	logger.Info("shutting down")

	stopWithTimeout(logger, "http server", httpSrv.Shutdown)
	logger.Info("shutdown complete")
	return nil
}

// buildHandler assembles the auth services and the API handler for cfg.
func buildHandler(cfg *config.Config, users auth.UserStore, obsServer ObservabilityServer, logger *slog.Logger) (*httpapi.Handler, error) {
	pool := auth.NewHashPool(auth.NewArgon2idHasher(), cfg.Hash.Concurrency)

	apiOpts := httpapi.Options{Logger: logger}
	if obsServer != nil {
		if metrics := obsServer.Metrics(); metrics != nil {
			pool.WithObserver(metrics.ObserveHash)
			apiOpts.Metrics = metrics
		}
	}

	signer, err := auth.NewTokenSigner([]byte(cfg.Secrets.JWTSecret), cfg.Token.TTL, cfg.Token.Issuer)
	if err != nil {
		return nil, err
	}
	registrar, err := auth.NewRegistrarWithLogger(users, pool, logger)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuerWithLogger(users, pool, signer, logger)
	if err != nil {
		return nil, err
	}
	issuer.WithThrottle(auth.NewLoginThrottle(cfg.Login.LockoutThreshold, cfg.Login.LockoutDuration))

	return httpapi.NewHandler(registrar, issuer, apiOpts)
}

func stopWithTimeout(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping "+name, "error", err)
	}
}
