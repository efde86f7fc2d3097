// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tropicsauth/tropics/internal/seed"
)

// NewValidateSeedsCmd creates the validate-seeds subcommand.
func NewValidateSeedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seeds <file>...",
		Short: "Validate seed files without touching storage",
		Long: `Validates seed files against the seed schema. Requires no database
connection. Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch seed file errors early:
  tropics validate-seeds deploy/seeds/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidateSeeds(args)
		},
	}
}

func runValidateSeeds(paths []string) error {
	var failures int
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("seed file unreadable", "path", path, "error", err)
			failures++
			continue
		}
		if err := seed.ValidateSchema(data); err != nil {
			slog.Error("seed validation failed", "path", path, "error", err)
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("validation failed: %d of %d seed files invalid", failures, len(paths))
	}
	slog.Info("all seed files valid", "count", len(paths))
	return nil
}
