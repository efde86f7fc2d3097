// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/tropicsauth/tropics/pkg/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `token, profile_id, login, started_at, last_seen_at`

// GetByToken retrieves a session by token.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*auth.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE token = $1
	`, token)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token").
			Wrap(err)
	}
	return s, nil
}

// GetByLogin retrieves the most recent live session for a login.
func (r *SessionRepository) GetByLogin(ctx context.Context, login string) (*auth.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE login = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, login)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by login").
			With("login", login).
			Wrap(err)
	}
	return s, nil
}

// Insert stores a new session.
func (r *SessionRepository) Insert(ctx context.Context, s *auth.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (token, profile_id, login, started_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.Token, s.ProfileID, s.Login, s.Started, s.LastSeen)
	if err != nil {
		if merr := mapConflict(err, "sessions_pkey", ""); merr != err {
			return merr
		}
		return oops.Code("SESSION_INSERT_FAILED").
			With("operation", "insert session").
			With("login", s.Login).
			Wrap(err)
	}
	return nil
}

// UpdateLastSeen advances the LastSeen timestamp for a session. The
// GREATEST guard keeps a stale writer from rewinding the sliding window.
func (r *SessionRepository) UpdateLastSeen(ctx context.Context, token string, lastSeen time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET last_seen_at = GREATEST(last_seen_at, $2)
		WHERE token = $1
	`, token, lastSeen)
	if err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").
			With("operation", "update session last seen").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// Delete removes a session by token.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// DeleteByProfile removes all sessions owned by a profile.
func (r *SessionRepository) DeleteByProfile(ctx context.Context, profileID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE profile_id = $1`, profileID)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions by profile").
			With("profile_id", profileID).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStale removes sessions past the given cutoffs. A zero time
// disables that criterion.
func (r *SessionRepository) DeleteStale(ctx context.Context, lastSeenBefore, startedBefore time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE ($1::timestamptz IS NOT NULL AND last_seen_at <= $1)
		   OR ($2::timestamptz IS NOT NULL AND started_at <= $2)
	`, nullableTime(lastSeenBefore), nullableTime(startedBefore))
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete stale sessions").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAll removes every session.
func (r *SessionRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions`)
	if err != nil {
		return oops.Code("SESSION_DELETE_ALL_FAILED").
			With("operation", "delete all sessions").
			Wrap(err)
	}
	return nil
}

func scanSession(row pgx.Row) (*auth.Session, error) {
	var s auth.Session
	if err := row.Scan(&s.Token, &s.ProfileID, &s.Login, &s.Started, &s.LastSeen); err != nil {
		return nil, err
	}
	return &s, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
