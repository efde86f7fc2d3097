// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryProfileRepository is an in-memory ProfileRepository. All methods
// run under a single mutex, so the check-then-insert uniqueness guard is
// race-free within one process.
type MemoryProfileRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Profile
	byLogin map[string]string // login -> id
}

// NewMemoryProfileRepository creates an empty in-memory profile repository.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		byID:    make(map[string]*Profile),
		byLogin: make(map[string]string),
	}
}

// Get retrieves a profile by id.
func (r *MemoryProfileRepository) Get(_ context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// GetByLogin retrieves a profile by login.
func (r *MemoryProfileRepository) GetByLogin(_ context.Context, login string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLogin[login]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

// List returns all profiles.
func (r *MemoryProfileRepository) List(_ context.Context) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ps := make([]*Profile, 0, len(r.byID))
	for _, p := range r.byID {
		ps = append(ps, p.Clone())
	}
	return ps, nil
}

// Upsert stores a profile keyed by id, replacing any prior record.
func (r *MemoryProfileRepository) Upsert(_ context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if holder, taken := r.byLogin[p.Login]; taken && holder != p.ID {
		return ErrDuplicateLogin
	}
	if prev, ok := r.byID[p.ID]; ok && prev.Login != p.Login {
		delete(r.byLogin, prev.Login)
	}
	r.byID[p.ID] = p.Clone()
	r.byLogin[p.Login] = p.ID
	return nil
}

// InsertMany stores a batch all-or-nothing.
func (r *MemoryProfileRepository) InsertMany(_ context.Context, ps []*Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seenIDs := make(map[string]struct{}, len(ps))
	seenLogins := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		if _, ok := r.byID[p.ID]; ok {
			return ErrDuplicateID
		}
		if _, ok := r.byLogin[p.Login]; ok {
			return ErrDuplicateLogin
		}
		if _, ok := seenIDs[p.ID]; ok {
			return ErrDuplicateID
		}
		if _, ok := seenLogins[p.Login]; ok {
			return ErrDuplicateLogin
		}
		seenIDs[p.ID] = struct{}{}
		seenLogins[p.Login] = struct{}{}
	}
	for _, p := range ps {
		r.byID[p.ID] = p.Clone()
		r.byLogin[p.Login] = p.ID
	}
	return nil
}

// Delete removes a profile by id.
func (r *MemoryProfileRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byLogin, p.Login)
	return nil
}

// DeleteAll removes every profile.
func (r *MemoryProfileRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*Profile)
	r.byLogin = make(map[string]string)
	return nil
}

// MemoryCredentialRepository is an in-memory CredentialRepository.
type MemoryCredentialRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Credential
	byLogin map[string]string // login -> id
}

// NewMemoryCredentialRepository creates an empty in-memory credential repository.
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		byID:    make(map[string]*Credential),
		byLogin: make(map[string]string),
	}
}

// GetByLogin retrieves a credential by login.
func (r *MemoryCredentialRepository) GetByLogin(_ context.Context, login string) (*Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLogin[login]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

// Upsert stores a credential keyed by id, replacing any prior record.
func (r *MemoryCredentialRepository) Upsert(_ context.Context, c *Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byID[c.ID]; ok && prev.Login != c.Login {
		delete(r.byLogin, prev.Login)
	}
	r.byID[c.ID] = c.Clone()
	r.byLogin[c.Login] = c.ID
	return nil
}

// DeleteByLogin removes the credential for a login.
func (r *MemoryCredentialRepository) DeleteByLogin(_ context.Context, login string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byLogin[login]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byLogin, login)
	return nil
}

// DeleteByID removes the credential owned by a profile id.
func (r *MemoryCredentialRepository) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byLogin, c.Login)
	return nil
}

// DeleteAll removes every credential.
func (r *MemoryCredentialRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*Credential)
	r.byLogin = make(map[string]string)
	return nil
}

// MemorySessionRepository is an in-memory SessionRepository.
type MemorySessionRepository struct {
	mu      sync.RWMutex
	byToken map[string]*Session
}

// NewMemorySessionRepository creates an empty in-memory session repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		byToken: make(map[string]*Session),
	}
}

// GetByToken retrieves a session by token.
func (r *MemorySessionRepository) GetByToken(_ context.Context, token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// GetByLogin retrieves any one live session for a login.
func (r *MemorySessionRepository) GetByLogin(_ context.Context, login string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byToken {
		if s.Login == login {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// Insert stores a new session.
func (r *MemorySessionRepository) Insert(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byToken[s.Token]; ok {
		return ErrDuplicateID
	}
	r.byToken[s.Token] = s.Clone()
	return nil
}

// UpdateLastSeen advances the LastSeen timestamp for a session.
func (r *MemorySessionRepository) UpdateLastSeen(_ context.Context, token string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byToken[token]
	if !ok {
		return ErrNotFound
	}
	// LastSeen only advances; a stale write must not rewind it.
	if lastSeen.After(s.LastSeen) {
		s.LastSeen = lastSeen
	}
	return nil
}

// Delete removes a session by token.
func (r *MemorySessionRepository) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byToken[token]; !ok {
		return ErrNotFound
	}
	delete(r.byToken, token)
	return nil
}

// DeleteByProfile removes all sessions owned by a profile.
func (r *MemorySessionRepository) DeleteByProfile(_ context.Context, profileID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.byToken {
		if s.ProfileID == profileID {
			delete(r.byToken, token)
			n++
		}
	}
	return n, nil
}

// DeleteStale removes sessions past the given cutoffs.
func (r *MemorySessionRepository) DeleteStale(_ context.Context, lastSeenBefore, startedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.byToken {
		stale := (!lastSeenBefore.IsZero() && !s.LastSeen.After(lastSeenBefore)) ||
			(!startedBefore.IsZero() && !s.Started.After(startedBefore))
		if stale {
			delete(r.byToken, token)
			n++
		}
	}
	return n, nil
}

// DeleteAll removes every session.
func (r *MemorySessionRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken = make(map[string]*Session)
	return nil
}
