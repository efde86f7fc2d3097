// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// Default timeout for reset command.
const defaultResetTimeout = 30 * time.Second

// NewResetCmd creates the reset subcommand.
func NewResetCmd() *cobra.Command {
	var (
		timeout   time.Duration
		seriously bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe all profiles, credentials and sessions",
		Long: `Deletes every record from the configured store. Intended for test
teardown and disposable environments only; refuses to run without the
--seriously flag.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd, timeout, seriously)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultResetTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().BoolVar(&seriously, "seriously", false, "confirm the destructive wipe")

	return cmd
}

func runReset(cmd *cobra.Command, timeout time.Duration, seriously bool) error {
	if !seriously {
		return oops.Code("RESET_NOT_CONFIRMED").
			Errorf("refusing to wipe all auth state; re-run with --seriously")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := newAuth(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	wiped, err := a.ResetAll(ctx, seriously)
	if err != nil {
		return err
	}
	if wiped {
		cmd.Println("All auth state wiped")
	}
	return nil
}
