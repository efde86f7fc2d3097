// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// SessionTokenBytes is the entropy of a session token. 32 bytes encode to
// 64 hex characters.
const SessionTokenBytes = 32

// Session represents a live login. Token is the primary key; Login and
// ProfileID are denormalized from the owning profile. LastSeen advances
// on every successful validation and is never before Started.
type Session struct {
	Token     string
	ProfileID string
	Login     string
	Started   time.Time
	LastSeen  time.Time
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// GenerateToken creates a globally-unique, unguessable session token.
func GenerateToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_TOKEN_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// GetByToken retrieves a session by token. Returns ErrNotFound if absent.
	GetByToken(ctx context.Context, token string) (*Session, error)

	// GetByLogin retrieves any one live session for a login. Returns
	// ErrNotFound when the login has no session.
	GetByLogin(ctx context.Context, login string) (*Session, error)

	// Insert stores a new session.
	Insert(ctx context.Context, s *Session) error

	// UpdateLastSeen advances the LastSeen timestamp for a session.
	// Returns ErrNotFound if absent.
	UpdateLastSeen(ctx context.Context, token string, lastSeen time.Time) error

	// Delete removes a session by token. Returns ErrNotFound if absent.
	Delete(ctx context.Context, token string) error

	// DeleteByProfile removes all sessions owned by a profile and
	// returns the count of deleted records.
	DeleteByProfile(ctx context.Context, profileID string) (int64, error)

	// DeleteStale removes sessions with LastSeen at or before
	// lastSeenBefore, or Started at or before startedBefore, and returns
	// the count. A zero time disables that criterion.
	DeleteStale(ctx context.Context, lastSeenBefore, startedBefore time.Time) (int64, error)

	// DeleteAll removes every session. Destructive, test/admin use only.
	DeleteAll(ctx context.Context) error
}

// SessionConfig carries the session policy for a Sessions service. At
// least one timeout must be set.
type SessionConfig struct {
	// AllowMultiSessions permits several concurrent sessions per login.
	AllowMultiSessions bool

	// IdleTimeout bounds the gap since the last successful validation
	// (sliding window). Zero disables the idle check.
	IdleTimeout time.Duration

	// AbsoluteTimeout bounds the total session lifetime regardless of
	// activity. Zero disables the absolute check.
	AbsoluteTimeout time.Duration
}

// Sessions issues, validates, refreshes and terminates session tokens.
//
// Expiry is lazy: a session past its window stays persisted until it is
// either presented for validation (and then purged) or removed by an
// explicit End or SweepStale call. There are no background timers.
type Sessions struct {
	sessions    SessionRepository
	profiles    ProfileRepository
	credentials *Credentials
	cfg         SessionConfig
	logger      *slog.Logger
	metrics     *Metrics
}

// NewSessions creates a new Sessions service.
func NewSessions(sessions SessionRepository, profiles ProfileRepository, credentials *Credentials, cfg SessionConfig) (*Sessions, error) {
	return NewSessionsWithLogger(sessions, profiles, credentials, cfg, slog.Default())
}

// NewSessionsWithLogger creates a new Sessions service with a custom logger.
func NewSessionsWithLogger(sessions SessionRepository, profiles ProfileRepository, credentials *Credentials, cfg SessionConfig, logger *slog.Logger) (*Sessions, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("sessions repository is required")
	}
	if profiles == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("profiles repository is required")
	}
	if credentials == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credentials service is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if cfg.IdleTimeout <= 0 && cfg.AbsoluteTimeout <= 0 {
		return nil, oops.Code("AUTH_NO_TIMEOUTS").
			Errorf("no timeouts were specified - set an idle or absolute timeout")
	}
	return &Sessions{
		sessions:    sessions,
		profiles:    profiles,
		credentials: credentials,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// SetMetrics attaches Prometheus metrics. Optional; a nil receiver field
// disables instrumentation.
func (s *Sessions) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Start verifies the login/passphrase pair and mints a new session token.
// Fails with AUTH_VERIFICATION_FAILED when the pair does not verify, and
// with AUTH_SESSION_EXISTS when concurrent sessions are disallowed and
// one is already live for the login.
func (s *Sessions) Start(ctx context.Context, login, passphrase string) (string, error) {
	ok, err := s.credentials.Verify(ctx, login, passphrase)
	if err != nil {
		s.countStartFailure("store")
		return "", err
	}
	if !ok {
		s.countStartFailure("verification")
		return "", oops.Code("AUTH_VERIFICATION_FAILED").
			With("login", login).
			Errorf("login or passphrase could not be verified")
	}

	if !s.cfg.AllowMultiSessions {
		existing, lerr := s.sessions.GetByLogin(ctx, login)
		if lerr != nil && !errors.Is(lerr, ErrNotFound) {
			s.countStartFailure("store")
			return "", oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get session by login").
				With("login", login).
				Wrap(lerr)
		}
		if existing != nil {
			s.countStartFailure("session_exists")
			return "", oops.Code("AUTH_SESSION_EXISTS").
				With("login", login).
				Errorf("a session already exists for this login")
		}
	}

	// A verified credential implies the profile exists; a miss here is an
	// upstream invariant violation, not a user error.
	profile, err := s.profiles.GetByLogin(ctx, login)
	if err != nil {
		s.countStartFailure("store")
		return "", oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get profile by login").
			With("login", login).
			Wrap(err)
	}

	token, err := GenerateToken()
	if err != nil {
		s.countStartFailure("token")
		return "", err
	}

	now := time.Now()
	session := &Session{
		Token:     token,
		ProfileID: profile.ID,
		Login:     profile.Login,
		Started:   now,
		LastSeen:  now,
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		s.countStartFailure("store")
		return "", oops.Code("AUTH_STORE_FAILED").
			With("operation", "insert session").
			With("login", login).
			Wrap(err)
	}

	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
	}
	s.logger.Debug("session started", "login", login, "profile_id", profile.ID)
	return token, nil
}

// Validate checks a presented token. An unknown token or an expired
// session yields (nil, nil) - expiry is never an error. An expired
// session is deleted as a side effect. A valid session has its LastSeen
// bumped (sliding-window refresh) and Validate returns the owning
// profile.
func (s *Sessions) Validate(ctx context.Context, token string) (*Profile, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.countValidation("unknown")
			return nil, nil
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get session by token").
			Wrap(err)
	}

	valid, err := CheckWindows(session, s.cfg.IdleTimeout, s.cfg.AbsoluteTimeout)
	if err != nil {
		return nil, err
	}
	if !valid {
		// Single-use cleanup of expired state.
		if derr := s.sessions.Delete(ctx, token); derr != nil && !errors.Is(derr, ErrNotFound) {
			s.logger.Warn("failed to remove expired session", "login", session.Login, "error", derr)
		}
		s.countValidation("expired")
		s.logger.Debug("session expired", "login", session.Login)
		return nil, nil
	}

	// Sliding-window refresh. Best effort: a stale overwrite under
	// concurrency only shortens the idle window, never extends it.
	if uerr := s.sessions.UpdateLastSeen(ctx, token, time.Now()); uerr != nil && !errors.Is(uerr, ErrNotFound) {
		s.logger.Warn("failed to refresh session", "login", session.Login, "error", uerr)
	}

	profile, err := s.profiles.Get(ctx, session.ProfileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.countValidation("orphaned")
			return nil, nil
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get profile by id").
			With("id", session.ProfileID).
			Wrap(err)
	}

	s.countValidation("valid")
	return profile, nil
}

// End terminates the session for the token. Returns false when no such
// session exists; ending twice yields false the second time, not an
// error.
func (s *Sessions) End(ctx context.Context, token string) (bool, error) {
	_, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get session by token").
			Wrap(err)
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}

	if s.metrics != nil {
		s.metrics.SessionsEnded.Inc()
	}
	return true, nil
}

// SweepStale removes sessions whose idle or absolute window has already
// lapsed, without touching the validation hot path. Intended for an
// out-of-band maintenance task; returns the number of sessions removed.
func (s *Sessions) SweepStale(ctx context.Context) (int64, error) {
	now := time.Now()
	var lastSeenBefore, startedBefore time.Time
	if s.cfg.IdleTimeout > 0 {
		lastSeenBefore = now.Add(-s.cfg.IdleTimeout)
	}
	if s.cfg.AbsoluteTimeout > 0 {
		startedBefore = now.Add(-s.cfg.AbsoluteTimeout)
	}

	n, err := s.sessions.DeleteStale(ctx, lastSeenBefore, startedBefore)
	if err != nil {
		return 0, oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete stale sessions").
			Wrap(err)
	}
	if n > 0 {
		if s.metrics != nil {
			s.metrics.SessionsSwept.Add(float64(n))
		}
		s.logger.Info("swept stale sessions", "count", n)
	}
	return n, nil
}

func (s *Sessions) countStartFailure(reason string) {
	if s.metrics != nil {
		s.metrics.StartFailures.WithLabelValues(reason).Inc()
	}
}

func (s *Sessions) countValidation(result string) {
	if s.metrics != nil {
		s.metrics.Validations.WithLabelValues(result).Inc()
	}
}
