// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

// Package config loads CLI configuration with koanf. Sources are merged
// with the priority flag > file > default; the library facade takes a
// plain tropics.Config and does not depend on this package.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tropicsauth/tropics"
)

// Config is the CLI configuration. Timeouts are expressed in whole
// seconds, matching the config file and flag surface.
type Config struct {
	DBLocation             string `koanf:"db_location"`
	AllowMultiSessions     bool   `koanf:"allow_multi_sessions"`
	SessionIdleTimeout     int    `koanf:"session_idle_timeout"`
	SessionAbsoluteTimeout int    `koanf:"session_absolute_timeout"`
	Log                    Log    `koanf:"log"`
}

// Log holds logging settings.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the stock CLI configuration, mirroring
// tropics.DefaultConfig.
func Default() Config {
	base := tropics.DefaultConfig()
	return Config{
		DBLocation:             base.DBLocation,
		AllowMultiSessions:     base.AllowMultiSessions,
		SessionIdleTimeout:     int(base.SessionIdleTimeout / time.Second),
		SessionAbsoluteTimeout: int(base.SessionAbsoluteTimeout / time.Second),
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// RegisterFlags declares the configuration flags with their default
// values. Flag names double as config file keys.
func RegisterFlags(flags *pflag.FlagSet) {
	def := Default()
	flags.String("db_location", def.DBLocation, "storage backend: \"memory\" or a postgres:// DSN")
	flags.Bool("allow_multi_sessions", def.AllowMultiSessions, "allow concurrent sessions per login")
	flags.Int("session_idle_timeout", def.SessionIdleTimeout, "idle timeout in seconds (0 disables)")
	flags.Int("session_absolute_timeout", def.SessionAbsoluteTimeout, "absolute timeout in seconds (0 disables)")
	flags.String("log.level", def.Log.Level, "log level: debug, info, warn, error")
	flags.String("log.format", def.Log.Format, "log format: json or text")
}

// Load builds the configuration from an optional YAML file and the
// given flag set. Flags changed on the command line override file
// values; flag defaults fill everything else.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, oops.Code("CONFIG_FILE_NOT_FOUND").
				With("path", path).
				Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_PARSE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	// posflag skips unchanged flags whose keys the file already set, so
	// the file wins over defaults and explicit flags win over the file.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SessionIdleTimeout < 0 || c.SessionAbsoluteTimeout < 0 {
		return oops.Code("CONFIG_INVALID").
			With("session_idle_timeout", c.SessionIdleTimeout).
			With("session_absolute_timeout", c.SessionAbsoluteTimeout).
			Errorf("session timeouts cannot be negative")
	}
	if c.SessionIdleTimeout == 0 && c.SessionAbsoluteTimeout == 0 {
		return oops.Code("AUTH_NO_TIMEOUTS").
			Errorf("no timeouts were specified - set an idle or absolute timeout")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log.format", c.Log.Format).
			Errorf("unknown log format")
	}
	return nil
}

// Engine converts the CLI configuration into the facade's Config.
func (c *Config) Engine() tropics.Config {
	return tropics.Config{
		DBLocation:             c.DBLocation,
		AllowMultiSessions:     c.AllowMultiSessions,
		SessionIdleTimeout:     time.Duration(c.SessionIdleTimeout) * time.Second,
		SessionAbsoluteTimeout: time.Duration(c.SessionAbsoluteTimeout) * time.Second,
	}
}

// LogLevel parses the configured level into a slog.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, oops.Code("CONFIG_INVALID").
			With("log.level", c.Log.Level).
			Errorf("unknown log level")
	}
}
