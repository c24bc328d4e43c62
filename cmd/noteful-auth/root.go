// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/noteful/noteful-auth/internal/config"
	"github.com/noteful/noteful-auth/internal/logging"
)

const serviceName = "noteful-auth"

// NewRootCmd creates the root command for the noteful-auth CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(NewServeCmd(), NewMigrateCmd(), NewUserCmd(), NewTokenCmd())
}

func newRootCmd(subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "noteful-auth - user registration and token service",
		Long: `noteful-auth registers users with argon2id-hashed passwords and
issues signed JWT identity tokens for the Noteful API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/noteful-auth/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(subcommands...)

	return cmd
}

// loadConfig resolves configuration for cmd from its flags, the config file
// and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(config.LoadOptions{Flags: cmd.Flags(), Path: path})
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg *config.Config) *slog.Logger {
	return logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.LogLevel(),
	})
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
