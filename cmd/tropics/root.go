// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tropicsauth/tropics"
	"github.com/tropicsauth/tropics/internal/config"
	"github.com/tropicsauth/tropics/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the tropics CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tropics",
		Short: "Tropics - an embeddable authentication engine",
		Long: `Tropics manages user profiles, passphrase credentials and expiring
sessions. The CLI covers database migrations and administrative tasks;
the engine itself is embedded as a library.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewValidateSeedsCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewResetCmd())

	return cmd
}

// loadConfig resolves the CLI configuration and installs the default
// logger according to its log settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logging.Config{
		Service: "tropics",
		Version: version,
		Format:  strings.ToLower(cfg.Log.Format),
		Level:   level,
		Writer:  os.Stderr,
	})
	return cfg, nil
}

// newAuth builds a facade from the CLI configuration.
func newAuth(ctx context.Context, cfg *config.Config) (*tropics.Auth, error) {
	return tropics.New(ctx, cfg.Engine())
}
