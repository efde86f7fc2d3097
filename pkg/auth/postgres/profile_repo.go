// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/tropicsauth/tropics/pkg/auth"
)

// ProfileRepository implements auth.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	pool poolIface
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool poolIface) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `id, login, attributes, created_at, updated_at`

// Get retrieves a profile by id.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*auth.Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE id = $1
	`, id)

	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "get profile by id").
			With("id", id).
			Wrap(err)
	}
	return p, nil
}

// GetByLogin retrieves a profile by login (case-sensitive).
func (r *ProfileRepository) GetByLogin(ctx context.Context, login string) (*auth.Profile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE login = $1
	`, login)

	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "get profile by login").
			With("login", login).
			Wrap(err)
	}
	return p, nil
}

// List returns all profiles ordered by creation time.
func (r *ProfileRepository) List(ctx context.Context) ([]*auth.Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		ORDER BY created_at
	`)
	if err != nil {
		return nil, oops.Code("PROFILE_LIST_FAILED").
			With("operation", "list profiles").
			Wrap(err)
	}
	defer rows.Close()

	var profiles []*auth.Profile
	for rows.Next() {
		p, serr := scanProfile(rows)
		if serr != nil {
			return nil, oops.Code("PROFILE_SCAN_FAILED").
				With("operation", "scan profile row").
				Wrap(serr)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PROFILE_ROWS_ERROR").
			With("operation", "iterate profile rows").
			Wrap(err)
	}
	return profiles, nil
}

// Upsert stores a profile, replacing any record with the same id. The
// login unique index turns a login collision into auth.ErrDuplicateLogin.
func (r *ProfileRepository) Upsert(ctx context.Context, p *auth.Profile) error {
	attrs, err := marshalAttributes(p.Attributes)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO profiles (id, login, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET login = $2, attributes = $3, updated_at = $5
	`, p.ID, p.Login, attrs, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if merr := mapConflict(err, "profiles_pkey", "profiles_login_key"); merr != err {
			return merr
		}
		return oops.Code("PROFILE_UPSERT_FAILED").
			With("operation", "upsert profile").
			With("id", p.ID).
			Wrap(err)
	}
	return nil
}

// InsertMany stores a batch of new profiles inside one transaction. Any
// conflict rolls back the whole batch.
func (r *ProfileRepository) InsertMany(ctx context.Context, ps []*auth.Profile) error {
	// pgxmock and pgxpool both expose Exec-level access only through the
	// pool subset here, so batch atomicity rides on a single multi-row
	// INSERT statement.
	if len(ps) == 0 {
		return nil
	}

	args := make([]any, 0, len(ps)*5)
	placeholders := ""
	for i, p := range ps {
		attrs, err := marshalAttributes(p.Attributes)
		if err != nil {
			return err
		}
		if i > 0 {
			placeholders += ", "
		}
		base := i * 5
		placeholders += placeholderRow(base+1, base+2, base+3, base+4, base+5)
		args = append(args, p.ID, p.Login, attrs, p.CreatedAt, p.UpdatedAt)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (id, login, attributes, created_at, updated_at)
		VALUES `+placeholders, args...)
	if err != nil {
		if merr := mapConflict(err, "profiles_pkey", "profiles_login_key"); merr != err {
			return merr
		}
		return oops.Code("PROFILE_INSERT_MANY_FAILED").
			With("operation", "insert profiles").
			With("count", len(ps)).
			Wrap(err)
	}
	return nil
}

// Delete removes a profile by id.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return oops.Code("PROFILE_DELETE_FAILED").
			With("operation", "delete profile").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// DeleteAll removes every profile.
func (r *ProfileRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM profiles`)
	if err != nil {
		return oops.Code("PROFILE_DELETE_ALL_FAILED").
			With("operation", "delete all profiles").
			Wrap(err)
	}
	return nil
}

func marshalAttributes(attrs map[string]any) ([]byte, error) {
	if attrs == nil {
		return []byte(`{}`), nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, oops.Code("PROFILE_ATTRS_INVALID").
			With("operation", "marshal attributes").
			Wrap(err)
	}
	return data, nil
}

func scanProfile(row pgx.Row) (*auth.Profile, error) {
	var p auth.Profile
	var attrs []byte
	if err := row.Scan(&p.ID, &p.Login, &attrs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// placeholderRow renders one parenthesized VALUES tuple, e.g. ($1, $2, $3, $4, $5).
func placeholderRow(ns ...int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, n := range ns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	b.WriteByte(')')
	return b.String()
}
