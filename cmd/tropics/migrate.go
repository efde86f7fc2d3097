// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package main

import (
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tropicsauth/tropics/pkg/auth/postgres"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending schema migrations against the configured PostgreSQL database.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(cfg.DBLocation, "postgres://") && !strings.HasPrefix(cfg.DBLocation, "postgresql://") {
		return oops.Code("CONFIG_INVALID").
			With("db_location", cfg.DBLocation).
			Errorf("migrate requires a postgres:// db_location")
	}

	migrator, err := postgres.NewMigrator(cfg.DBLocation)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrator.Close(); cerr != nil {
			cmd.PrintErrln("warning:", cerr)
		}
	}()

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations completed successfully (version %d, dirty=%t)\n", version, dirty)
	return nil
}
