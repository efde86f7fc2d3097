// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/tropicsauth/tropics/pkg/auth"
)

// CredentialRepository implements auth.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool poolIface
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(pool poolIface) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// GetByLogin retrieves a credential by login.
func (r *CredentialRepository) GetByLogin(ctx context.Context, login string) (*auth.Credential, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, login, hash, updated_at, last
		FROM credentials
		WHERE login = $1
	`, login)

	var c auth.Credential
	var hash *string
	err := row.Scan(&c.ID, &c.Login, &hash, &c.Updated, &c.Last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential by login").
			With("login", login).
			Wrap(err)
	}
	if hash != nil {
		c.Hash = *hash
	}
	return &c, nil
}

// Upsert stores a credential, replacing any record with the same id.
func (r *CredentialRepository) Upsert(ctx context.Context, c *auth.Credential) error {
	// NULL hash means "no passphrase set".
	var hash *string
	if c.Hash != "" {
		hash = &c.Hash
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO credentials (id, login, hash, updated_at, last)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET login = $2, hash = $3, updated_at = $4, last = $5
	`, c.ID, c.Login, hash, c.Updated, c.Last)
	if err != nil {
		if merr := mapConflict(err, "credentials_pkey", "credentials_login_key"); merr != err {
			return merr
		}
		return oops.Code("CREDENTIAL_UPSERT_FAILED").
			With("operation", "upsert credential").
			With("login", c.Login).
			Wrap(err)
	}
	return nil
}

// DeleteByLogin removes the credential for a login.
func (r *CredentialRepository) DeleteByLogin(ctx context.Context, login string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM credentials WHERE login = $1`, login)
	if err != nil {
		return oops.Code("CREDENTIAL_DELETE_FAILED").
			With("operation", "delete credential by login").
			With("login", login).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// DeleteByID removes the credential owned by a profile id.
func (r *CredentialRepository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	if err != nil {
		return oops.Code("CREDENTIAL_DELETE_FAILED").
			With("operation", "delete credential by id").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// DeleteAll removes every credential.
func (r *CredentialRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM credentials`)
	if err != nil {
		return oops.Code("CREDENTIAL_DELETE_ALL_FAILED").
			With("operation", "delete all credentials").
			Wrap(err)
	}
	return nil
}
