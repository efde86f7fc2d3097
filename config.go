// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package tropics

import "time"

// Storage selection for Config.DBLocation.
const (
	// MemoryStore selects the in-process repositories. It is the default
	// and suits tests and single-process embedding.
	MemoryStore = "memory"
)

// Config carries the engine settings. The value is copied at New and
// never consulted again, so mutating a Config after construction has no
// effect on a running Auth.
type Config struct {
	// DBLocation selects the backing store. Empty or "memory" uses the
	// in-process repositories; a postgres:// or postgresql:// DSN uses
	// PostgreSQL.
	DBLocation string

	// AllowMultiSessions permits several concurrent sessions per login.
	AllowMultiSessions bool

	// SessionIdleTimeout bounds the gap between validations. Zero
	// disables the idle check.
	SessionIdleTimeout time.Duration

	// SessionAbsoluteTimeout bounds the total session lifetime. Zero
	// disables the absolute check. At least one timeout must be set.
	SessionAbsoluteTimeout time.Duration
}

// DefaultConfig returns the stock settings: in-memory storage, multiple
// sessions allowed, a 10s idle window and a 20s absolute window.
func DefaultConfig() Config {
	return Config{
		DBLocation:             MemoryStore,
		AllowMultiSessions:     true,
		SessionIdleTimeout:     10 * time.Second,
		SessionAbsoluteTimeout: 20 * time.Second,
	}
}
