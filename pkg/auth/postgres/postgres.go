// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

// Package postgres provides PostgreSQL-backed repositories for the auth
// domain. Uniqueness of profile ids and logins is enforced with unique
// indexes, so a conflicting insert is rejected atomically by the database
// rather than by a check-then-insert in application code.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/tropicsauth/tropics/pkg/auth"
)

// Connect retry policy for NewPool.
const (
	connectRetries    = 5
	connectRetryBase  = 100 * time.Millisecond
	defaultPingWindow = 5 * time.Second
)

// poolIface is the subset of pgxpool.Pool the repositories use.
// Satisfied by *pgxpool.Pool and pgxmock.PgxPoolIface.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool connects to PostgreSQL and verifies the connection with a
// fibonacci-backoff ping.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectRetries, retry.NewFibonacci(connectRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, defaultPingWindow)
		defer cancel()
		if perr := pool.Ping(pingCtx); perr != nil {
			return retry.RetryableError(perr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}

// mapConflict translates a PostgreSQL unique-violation into the domain
// sentinel matching the violated constraint.
func mapConflict(err error, idConstraint, loginConstraint string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case idConstraint:
			return auth.ErrDuplicateID
		case loginConstraint:
			return auth.ErrDuplicateLogin
		}
	}
	return err
}
