// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// Default timeout for sweep command.
const defaultSweepTimeout = 30 * time.Second

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired sessions from storage",
		Long: `Deletes sessions whose idle or absolute window has already lapsed.
Expiry is otherwise lazy: an expired session that is never presented for
validation lingers until a sweep removes it. Intended to run from cron.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultSweepTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSweep(cmd *cobra.Command, timeout time.Duration) error {
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

	n, err := a.SweepSessions(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Removed %d stale sessions\n", n)
	return nil
}
