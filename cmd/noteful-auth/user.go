// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package main

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/noteful/noteful-auth/internal/auth"
)

// NewUserCmd creates the user command tree.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var username, fullname string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		Long: `Register a user in the configured store, applying the same validation
as the API. The password is read from the first line of standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := setupLogging(cfg)

			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			users, closeStore, err := openStore(cmd.Context(), cfg, logger, true, nil)
			if err != nil {
				return err
			}
			defer closeStore()

			return addUser(cmd, users, logger, cfg.Hash.Concurrency, map[string]any{
				"username": username,
				"password": password,
				"fullname": fullname,
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username to register")
	cmd.Flags().StringVar(&fullname, "fullname", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// addUser registers payload and prints the public user as JSON.
func addUser(cmd *cobra.Command, users auth.UserStore, logger *slog.Logger, concurrency int, payload map[string]any) error {
	registrar, err := auth.NewRegistrarWithLogger(users, auth.NewHashPool(auth.NewArgon2idHasher(), concurrency), logger)
	if err != nil {
		return err
	}

	user, err := registrar.Register(cmd.Context(), payload)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(user)
}

// readPassword returns the first line of stdin without its line ending.
func readPassword(cmd *cobra.Command) (string, error) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return "", oops.Code("PASSWORD_READ_FAILED").Errorf("no password on standard input")
	}
	return strings.TrimRight(scanner.Text(), "\r"), nil
}
