// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Credential is the stored passphrase record for one profile. ID equals
// the owning profile's id; Login is a denormalized copy used as the
// lookup key. An empty Hash means no passphrase has been set. Last is a
// reserved counter, unused by current behavior.
type Credential struct {
	ID      string
	Login   string
	Hash    string
	Updated time.Time
	Last    int64
}

// Clone returns a copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// CredentialRepository manages credential persistence.
type CredentialRepository interface {
	// GetByLogin retrieves a credential by login. Returns ErrNotFound
	// if absent.
	GetByLogin(ctx context.Context, login string) (*Credential, error)

	// Upsert stores a credential, replacing any record with the same id.
	Upsert(ctx context.Context, c *Credential) error

	// DeleteByLogin removes the credential for a login. Returns
	// ErrNotFound if absent.
	DeleteByLogin(ctx context.Context, login string) error

	// DeleteByID removes the credential owned by a profile id. Returns
	// ErrNotFound if absent.
	DeleteByID(ctx context.Context, id string) error

	// DeleteAll removes every credential. Destructive, test/admin use only.
	DeleteAll(ctx context.Context) error
}

// Credentials manages passphrase hashes per profile.
type Credentials struct {
	credentials CredentialRepository
	profiles    ProfileRepository
	hasher      Hasher
	logger      *slog.Logger
}

// NewCredentials creates a new Credentials service.
func NewCredentials(credentials CredentialRepository, profiles ProfileRepository, hasher Hasher) (*Credentials, error) {
	return NewCredentialsWithLogger(credentials, profiles, hasher, slog.Default())
}

// NewCredentialsWithLogger creates a new Credentials service with a custom logger.
func NewCredentialsWithLogger(credentials CredentialRepository, profiles ProfileRepository, hasher Hasher, logger *slog.Logger) (*Credentials, error) {
	if credentials == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credentials repository is required")
	}
	if profiles == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("profiles repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("passphrase hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Credentials{
		credentials: credentials,
		profiles:    profiles,
		hasher:      hasher,
		logger:      logger,
	}, nil
}

// Set hashes the passphrase and stores it for the login, replacing any
// prior hash. When the login has no credential yet, a profile with that
// login must exist; otherwise Set fails with AUTH_PROFILE_NOT_FOUND.
func (c *Credentials) Set(ctx context.Context, login, passphrase string) error {
	cred, err := c.credentials.GetByLogin(ctx, login)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get credential by login").
			With("login", login).
			Wrap(err)
	}

	if cred == nil {
		profile, perr := c.profiles.GetByLogin(ctx, login)
		if perr != nil {
			if errors.Is(perr, ErrNotFound) {
				return oops.Code("AUTH_PROFILE_NOT_FOUND").
					With("login", login).
					Errorf("login %q does not exist", login)
			}
			return oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get profile by login").
				With("login", login).
				Wrap(perr)
		}
		cred = &Credential{
			ID:    profile.ID,
			Login: login,
		}
	}

	hash, err := c.hasher.Hash(passphrase)
	if err != nil {
		return oops.Code("AUTH_HASH_FAILED").
			With("operation", "hash passphrase").
			Wrap(err)
	}
	cred.Hash = hash
	cred.Updated = time.Now()

	if err := c.credentials.Upsert(ctx, cred); err != nil {
		return oops.Code("AUTH_STORE_FAILED").
			With("operation", "upsert credential").
			With("login", login).
			Wrap(err)
	}

	c.logger.Debug("passphrase set", "login", login)
	return nil
}

// Verify reports whether the passphrase matches the stored hash for the
// login. A missing credential or an unset hash is a normal false, never
// an error; so is a mismatch.
func (c *Credentials) Verify(ctx context.Context, login, passphrase string) (bool, error) {
	cred, err := c.credentials.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get credential by login").
			With("login", login).
			Wrap(err)
	}
	if cred.Hash == "" {
		return false, nil
	}

	ok, err := c.hasher.Verify(passphrase, cred.Hash)
	if err != nil {
		return false, oops.Code("AUTH_HASH_FAILED").
			With("operation", "verify passphrase").
			With("login", login).
			Wrap(err)
	}
	return ok, nil
}

// Remove deletes the credential for the login. Removing a credential that
// does not exist is not an error.
func (c *Credentials) Remove(ctx context.Context, login string) error {
	err := c.credentials.DeleteByLogin(ctx, login)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete credential").
			With("login", login).
			Wrap(err)
	}
	return nil
}
