// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Profile represents a user identity record. ID and Login are each unique
// across all profiles; Attributes carries arbitrary host-owned fields that
// the engine never interprets.
type Profile struct {
	ID         string
	Login      string
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep copy of the profile. Repositories and services hand
// out clones so callers cannot mutate persisted state in place.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Attributes != nil {
		c.Attributes = make(map[string]any, len(p.Attributes))
		for k, v := range p.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

// ProfileRepository manages profile persistence.
type ProfileRepository interface {
	// Get retrieves a profile by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Profile, error)

	// GetByLogin retrieves a profile by login (case-sensitive).
	// Returns ErrNotFound if absent.
	GetByLogin(ctx context.Context, login string) (*Profile, error)

	// List returns all profiles.
	List(ctx context.Context) ([]*Profile, error)

	// Upsert stores a profile, replacing any record with the same id.
	// Returns ErrDuplicateLogin if a different record holds the login.
	Upsert(ctx context.Context, p *Profile) error

	// InsertMany stores a batch of new profiles all-or-nothing. Returns
	// ErrDuplicateID or ErrDuplicateLogin without persisting anything
	// when any element conflicts.
	InsertMany(ctx context.Context, ps []*Profile) error

	// Delete removes a profile by id. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every profile. Destructive, test/admin use only.
	DeleteAll(ctx context.Context) error
}

// Registry manages profile records and enforces id/login uniqueness.
// Removing a profile cascades to its credential and sessions.
type Registry struct {
	profiles    ProfileRepository
	credentials CredentialRepository
	sessions    SessionRepository
	logger      *slog.Logger
}

// NewRegistry creates a new Registry.
func NewRegistry(profiles ProfileRepository, credentials CredentialRepository, sessions SessionRepository) (*Registry, error) {
	return NewRegistryWithLogger(profiles, credentials, sessions, slog.Default())
}

// NewRegistryWithLogger creates a new Registry with a custom logger.
func NewRegistryWithLogger(profiles ProfileRepository, credentials CredentialRepository, sessions SessionRepository, logger *slog.Logger) (*Registry, error) {
	if profiles == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("profiles repository is required")
	}
	if credentials == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credentials repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("sessions repository is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Registry{
		profiles:    profiles,
		credentials: credentials,
		sessions:    sessions,
		logger:      logger,
	}, nil
}

// checkAvailable verifies that neither the id nor the login of p is taken.
// excludeID exempts one record from the login check, for updates.
func (r *Registry) checkAvailable(ctx context.Context, p *Profile, excludeID string) error {
	if excludeID == "" {
		existing, err := r.profiles.Get(ctx, p.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get profile by id").
				Wrap(err)
		}
		if existing != nil {
			return oops.Code("AUTH_PROFILE_EXISTS").
				With("id", p.ID).
				Errorf("profile already exists")
		}
	}

	byLogin, err := r.profiles.GetByLogin(ctx, p.Login)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get profile by login").
			Wrap(err)
	}
	if byLogin != nil && byLogin.ID != excludeID {
		return oops.Code("AUTH_LOGIN_EXISTS").
			With("login", p.Login).
			Errorf("login already in use")
	}
	return nil
}

// Add registers a new profile. An empty ID is replaced with a generated
// ULID. Fails with AUTH_PROFILE_EXISTS on an id collision and
// AUTH_LOGIN_EXISTS when a different profile holds the login.
func (r *Registry) Add(ctx context.Context, p *Profile) (*Profile, error) {
	if p == nil || p.Login == "" {
		return nil, oops.Code("AUTH_INVALID_PROFILE").Errorf("profile login cannot be empty")
	}

	p = p.Clone()
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}

	if err := r.checkAvailable(ctx, p, ""); err != nil {
		return nil, err
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := r.profiles.Upsert(ctx, p); err != nil {
		// The store-level unique index is the authoritative guard; a
		// concurrent writer can slip past the pre-checks above.
		if errors.Is(err, ErrDuplicateLogin) {
			return nil, oops.Code("AUTH_LOGIN_EXISTS").
				With("login", p.Login).
				Errorf("login already in use")
		}
		return nil, oops.Code("AUTH_STORE_FAILED").
			With("operation", "upsert profile").
			With("id", p.ID).
			Wrap(err)
	}

	r.logger.Debug("profile added", "id", p.ID, "login", p.Login)
	return p.Clone(), nil
}

// AddMany registers a batch of profiles all-or-nothing: every element is
// checked for id and login conflicts, including against the rest of the
// batch, before anything is persisted. Returns the number of profiles
// stored.
func (r *Registry) AddMany(ctx context.Context, ps []*Profile) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}

	batch := make([]*Profile, 0, len(ps))
	seenIDs := make(map[string]struct{}, len(ps))
	seenLogins := make(map[string]struct{}, len(ps))
	now := time.Now()

	for _, p := range ps {
		if p == nil || p.Login == "" {
			return 0, oops.Code("AUTH_INVALID_PROFILE").Errorf("profile login cannot be empty")
		}
		p = p.Clone()
		if p.ID == "" {
			p.ID = ulid.Make().String()
		}
		if _, dup := seenIDs[p.ID]; dup {
			return 0, oops.Code("AUTH_PROFILE_EXISTS").
				With("id", p.ID).
				Errorf("duplicate id within batch")
		}
		if _, dup := seenLogins[p.Login]; dup {
			return 0, oops.Code("AUTH_LOGIN_EXISTS").
				With("login", p.Login).
				Errorf("duplicate login within batch")
		}
		if err := r.checkAvailable(ctx, p, ""); err != nil {
			return 0, err
		}
		seenIDs[p.ID] = struct{}{}
		seenLogins[p.Login] = struct{}{}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		batch = append(batch, p)
	}

	if err := r.profiles.InsertMany(ctx, batch); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateID):
			return 0, oops.Code("AUTH_PROFILE_EXISTS").Wrap(err)
		case errors.Is(err, ErrDuplicateLogin):
			return 0, oops.Code("AUTH_LOGIN_EXISTS").Wrap(err)
		}
		return 0, oops.Code("AUTH_STORE_FAILED").
			With("operation", "insert profiles").
			With("count", len(batch)).
			Wrap(err)
	}

	r.logger.Debug("profiles added", "count", len(batch))
	return len(batch), nil
}

// Update replaces an existing profile record in full. Fails with
// AUTH_PROFILE_NOT_FOUND when no profile has the id, and with
// AUTH_LOGIN_EXISTS when the new login is held by a different profile.
func (r *Registry) Update(ctx context.Context, p *Profile) (*Profile, error) {
	if p == nil || p.ID == "" {
		return nil, oops.Code("AUTH_INVALID_PROFILE").Errorf("profile id cannot be empty")
	}

	existing, err := r.profiles.Get(ctx, p.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_PROFILE_NOT_FOUND").
				With("id", p.ID).
				Errorf("profile not found")
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get profile by id").
			Wrap(err)
	}

	if err := r.checkAvailable(ctx, p, p.ID); err != nil {
		return nil, err
	}

	p = p.Clone()
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()

	if err := r.profiles.Upsert(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateLogin) {
			return nil, oops.Code("AUTH_LOGIN_EXISTS").
				With("login", p.Login).
				Errorf("login already in use")
		}
		return nil, oops.Code("AUTH_STORE_FAILED").
			With("operation", "upsert profile").
			With("id", p.ID).
			Wrap(err)
	}

	return p.Clone(), nil
}

// Get retrieves a profile by id. Absence is not an error: a missing
// profile yields (nil, nil).
func (r *Registry) Get(ctx context.Context, id string) (*Profile, error) {
	p, err := r.profiles.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get profile by id").
			With("id", id).
			Wrap(err)
	}
	return p, nil
}

// GetByLogin retrieves a profile by login, with (nil, nil) on absence.
func (r *Registry) GetByLogin(ctx context.Context, login string) (*Profile, error) {
	p, err := r.profiles.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get profile by login").
			With("login", login).
			Wrap(err)
	}
	return p, nil
}

// List returns all registered profiles.
func (r *Registry) List(ctx context.Context) ([]*Profile, error) {
	ps, err := r.profiles.List(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "list profiles").
			Wrap(err)
	}
	return ps, nil
}

// Remove deletes the profile with the given id along with its credential
// and any live sessions. Returns false when no such profile exists.
func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	return true, r.remove(ctx, p)
}

// RemoveByLogin deletes the profile holding the given login, cascading
// like Remove. Returns false when no such profile exists.
func (r *Registry) RemoveByLogin(ctx context.Context, login string) (bool, error) {
	p, err := r.GetByLogin(ctx, login)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	return true, r.remove(ctx, p)
}

func (r *Registry) remove(ctx context.Context, p *Profile) error {
	if err := r.profiles.Delete(ctx, p.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete profile").
			With("id", p.ID).
			Wrap(err)
	}

	// Cascade: a removed profile must not leave an orphaned credential or
	// live sessions behind.
	if err := r.credentials.DeleteByID(ctx, p.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete credential").
			With("id", p.ID).
			Wrap(err)
	}
	deleted, err := r.sessions.DeleteByProfile(ctx, p.ID)
	if err != nil {
		return oops.Code("AUTH_STORE_FAILED").
			With("operation", "delete sessions").
			With("id", p.ID).
			Wrap(err)
	}
	if deleted > 0 {
		r.logger.Debug("cascaded session removal", "id", p.ID, "sessions", deleted)
	}
	return nil
}
