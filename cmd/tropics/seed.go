// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tropicsauth/tropics/internal/seed"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Register profiles from a seed file",
		Long: `Loads a YAML seed file, validates it against the seed schema, and
registers its profiles all-or-nothing. Seeds carrying a passphrase get a
credential as well. Re-running against the same store fails on the login
collision rather than creating duplicates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string, sc *seedConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	f, err := seed.Load(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sc.timeout)
	defer cancel()

	a, err := newAuth(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := seed.Apply(ctx, a, f)
	if err != nil {
		return err
	}
	cmd.Printf("Registered %d profiles\n", n)
	return nil
}
