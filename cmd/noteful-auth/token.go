// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noteful/noteful-auth/internal/auth"
)

// NewTokenCmd creates the token command tree.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect identity tokens",
	}
	cmd.AddCommand(newTokenVerifyCmd())
	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify a token and print its claims",
		Long: `Check a token's signature, algorithm, issuer and expiry against the
configured NOTEFUL_JWT_SECRET and print the claims as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateToken(); err != nil {
				return err
			}

			signer, err := auth.NewTokenSigner([]byte(cfg.Secrets.JWTSecret), cfg.Token.TTL, cfg.Token.Issuer)
			if err != nil {
				return err
			}
			claims, err := signer.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(claims)
		},
	}
}
