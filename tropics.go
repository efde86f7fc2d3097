// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

// Package tropics provides an embeddable authentication engine: profile
// records, passphrase credentials and expiring sessions behind one
// facade. Hosts construct an Auth from a Config and call its operations;
// everything underneath (hashing, storage, expiry policy) is swappable
// through options.
package tropics

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/tropicsauth/tropics/pkg/auth"
	"github.com/tropicsauth/tropics/pkg/auth/postgres"
)

// Auth is the authentication facade. All operations are safe for
// concurrent use.
type Auth struct {
	cfg         Config
	registry    *auth.Registry
	credentials *auth.Credentials
	sessions    *auth.Sessions

	profileRepo    auth.ProfileRepository
	credentialRepo auth.CredentialRepository
	sessionRepo    auth.SessionRepository

	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Option customizes an Auth under construction.
type Option func(*options)

type options struct {
	hasher         auth.Hasher
	logger         *slog.Logger
	registerer     prometheus.Registerer
	profileRepo    auth.ProfileRepository
	credentialRepo auth.CredentialRepository
	sessionRepo    auth.SessionRepository
}

// WithHasher swaps the passphrase hasher. The default is PBKDF2-SHA256.
func WithHasher(h auth.Hasher) Option {
	return func(o *options) { o.hasher = h }
}

// WithLogger sets the logger used by all services. The default is
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetricsRegisterer registers session metrics on the given
// registerer. Without this option no metrics are collected.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithRepositories injects custom storage, overriding DBLocation. All
// three repositories must be provided together.
func WithRepositories(profiles auth.ProfileRepository, credentials auth.CredentialRepository, sessions auth.SessionRepository) Option {
	return func(o *options) {
		o.profileRepo = profiles
		o.credentialRepo = credentials
		o.sessionRepo = sessions
	}
}

// New constructs an Auth from the config. The config value is copied;
// later mutation of cfg has no effect. Construction fails when no
// session timeout is configured or the storage backend cannot be
// reached.
func New(ctx context.Context, cfg Config, opts ...Option) (*Auth, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.hasher == nil {
		o.hasher = auth.NewPBKDF2Hasher()
	}

	a := &Auth{cfg: cfg, logger: o.logger}

	switch {
	case o.profileRepo != nil || o.credentialRepo != nil || o.sessionRepo != nil:
		if o.profileRepo == nil || o.credentialRepo == nil || o.sessionRepo == nil {
			return nil, oops.Code("AUTH_INVALID_DEPENDENCY").
				Errorf("WithRepositories requires all three repositories")
		}
		a.profileRepo = o.profileRepo
		a.credentialRepo = o.credentialRepo
		a.sessionRepo = o.sessionRepo
	case cfg.DBLocation == "" || cfg.DBLocation == MemoryStore:
		a.profileRepo = auth.NewMemoryProfileRepository()
		a.credentialRepo = auth.NewMemoryCredentialRepository()
		a.sessionRepo = auth.NewMemorySessionRepository()
	case strings.HasPrefix(cfg.DBLocation, "postgres://") || strings.HasPrefix(cfg.DBLocation, "postgresql://"):
		pool, err := postgres.NewPool(ctx, cfg.DBLocation)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.profileRepo = postgres.NewProfileRepository(pool)
		a.credentialRepo = postgres.NewCredentialRepository(pool)
		a.sessionRepo = postgres.NewSessionRepository(pool)
	default:
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("db_location", cfg.DBLocation).
			Errorf("unsupported db_location: use %q or a postgres:// DSN", MemoryStore)
	}

	registry, err := auth.NewRegistryWithLogger(a.profileRepo, a.credentialRepo, a.sessionRepo, o.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	credentials, err := auth.NewCredentialsWithLogger(a.credentialRepo, a.profileRepo, o.hasher, o.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	sessions, err := auth.NewSessionsWithLogger(a.sessionRepo, a.profileRepo, credentials, auth.SessionConfig{
		AllowMultiSessions: cfg.AllowMultiSessions,
		IdleTimeout:        cfg.SessionIdleTimeout,
		AbsoluteTimeout:    cfg.SessionAbsoluteTimeout,
	}, o.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	if o.registerer != nil {
		sessions.SetMetrics(auth.NewMetrics(o.registerer))
	}

	a.registry = registry
	a.credentials = credentials
	a.sessions = sessions
	return a, nil
}

// Close releases the storage backend. Safe to call on a partially
// constructed or already closed Auth.
func (a *Auth) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// Config returns a copy of the settings the Auth was built with.
func (a *Auth) Config() Config {
	return a.cfg
}

// AddProfile registers a new profile and returns the stored copy with
// its id filled in.
func (a *Auth) AddProfile(ctx context.Context, p *auth.Profile) (*auth.Profile, error) {
	return a.registry.Add(ctx, p)
}

// AddProfiles registers a batch of profiles all-or-nothing and returns
// the number stored.
func (a *Auth) AddProfiles(ctx context.Context, ps []*auth.Profile) (int, error) {
	return a.registry.AddMany(ctx, ps)
}

// UpdateProfile replaces an existing profile record in full.
func (a *Auth) UpdateProfile(ctx context.Context, p *auth.Profile) (*auth.Profile, error) {
	return a.registry.Update(ctx, p)
}

// GetProfile retrieves a profile by id, (nil, nil) when absent.
func (a *Auth) GetProfile(ctx context.Context, id string) (*auth.Profile, error) {
	return a.registry.Get(ctx, id)
}

// GetProfileByLogin retrieves a profile by login, (nil, nil) when absent.
func (a *Auth) GetProfileByLogin(ctx context.Context, login string) (*auth.Profile, error) {
	return a.registry.GetByLogin(ctx, login)
}

// GetProfiles returns all registered profiles.
func (a *Auth) GetProfiles(ctx context.Context) ([]*auth.Profile, error) {
	return a.registry.List(ctx)
}

// RemoveProfile deletes a profile by id, cascading to its credential and
// sessions. Returns false when no such profile exists.
func (a *Auth) RemoveProfile(ctx context.Context, id string) (bool, error) {
	return a.registry.Remove(ctx, id)
}

// RemoveProfileByLogin deletes a profile by login, cascading like
// RemoveProfile.
func (a *Auth) RemoveProfileByLogin(ctx context.Context, login string) (bool, error) {
	return a.registry.RemoveByLogin(ctx, login)
}

// CheckLoginAvailable reports whether no profile currently holds the
// login.
func (a *Auth) CheckLoginAvailable(ctx context.Context, login string) (bool, error) {
	p, err := a.registry.GetByLogin(ctx, login)
	if err != nil {
		return false, err
	}
	return p == nil, nil
}

// SetPassphrase hashes and stores a passphrase for the login.
func (a *Auth) SetPassphrase(ctx context.Context, login, passphrase string) error {
	return a.credentials.Set(ctx, login, passphrase)
}

// VerifyByPassphrase reports whether the passphrase matches the stored
// credential. A missing credential or a mismatch is a normal false.
func (a *Auth) VerifyByPassphrase(ctx context.Context, login, passphrase string) (bool, error) {
	return a.credentials.Verify(ctx, login, passphrase)
}

// RemovePassphrase deletes the stored credential for the login.
// Idempotent.
func (a *Auth) RemovePassphrase(ctx context.Context, login string) error {
	return a.credentials.Remove(ctx, login)
}

// StartSession verifies the login/passphrase pair and mints a session
// token.
func (a *Auth) StartSession(ctx context.Context, login, passphrase string) (string, error) {
	return a.sessions.Start(ctx, login, passphrase)
}

// ValidateSession checks a token, sliding the idle window on success.
// An unknown or expired token yields (nil, nil).
func (a *Auth) ValidateSession(ctx context.Context, token string) (*auth.Profile, error) {
	return a.sessions.Validate(ctx, token)
}

// EndSession terminates the session for the token. Returns false when no
// such session exists.
func (a *Auth) EndSession(ctx context.Context, token string) (bool, error) {
	return a.sessions.End(ctx, token)
}

// SweepSessions removes sessions whose idle or absolute window has
// lapsed and returns the count.
func (a *Auth) SweepSessions(ctx context.Context) (int64, error) {
	return a.sessions.SweepStale(ctx)
}

// ResetAll wipes every session, credential and profile. The confirm flag
// must be true or nothing happens and ResetAll returns false.
func (a *Auth) ResetAll(ctx context.Context, confirm bool) (bool, error) {
	if !confirm {
		return false, nil
	}
	if err := a.sessionRepo.DeleteAll(ctx); err != nil {
		return false, oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete all sessions").
			Wrap(err)
	}
	if err := a.credentialRepo.DeleteAll(ctx); err != nil {
		return false, oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete all credentials").
			Wrap(err)
	}
	if err := a.profileRepo.DeleteAll(ctx); err != nil {
		return false, oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete all profiles").
			Wrap(err)
	}
	a.logger.Warn("all auth state wiped")
	return true, nil
}
