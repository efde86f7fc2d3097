// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tropicsauth/tropics/pkg/errutil"
)

func newTestRegistry(t *testing.T) (*Registry, *MemoryProfileRepository, *MemoryCredentialRepository, *MemorySessionRepository) {
	t.Helper()
	profiles := NewMemoryProfileRepository()
	credentials := NewMemoryCredentialRepository()
	sessions := NewMemorySessionRepository()
	reg, err := NewRegistry(profiles, credentials, sessions)
	require.NoError(t, err)
	return reg, profiles, credentials, sessions
}

func TestNewRegistry_Validation(t *testing.T) {
	profiles := NewMemoryProfileRepository()
	credentials := NewMemoryCredentialRepository()
	sessions := NewMemorySessionRepository()

	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "nil profiles",
			run: func() error {
				_, err := NewRegistry(nil, credentials, sessions)
				return err
			},
		},
		{
			name: "nil credentials",
			run: func() error {
				_, err := NewRegistry(profiles, nil, sessions)
				return err
			},
		},
		{
			name: "nil sessions",
			run: func() error {
				_, err := NewRegistry(profiles, credentials, nil)
				return err
			},
		},
		{
			name: "nil logger",
			run: func() error {
				_, err := NewRegistryWithLogger(profiles, credentials, sessions, nil)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errutil.AssertErrorCode(t, tt.run(), "AUTH_INVALID_DEPENDENCY")
		})
	}
}

func TestRegistry_AddAndGet(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	added, err := reg.Add(ctx, &Profile{
		Login:      "kermit",
		Attributes: map[string]any{"color": "green"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID, "empty id must be filled with a generated one")
	assert.False(t, added.CreatedAt.IsZero())

	got, err := reg.Get(ctx, added.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "kermit", got.Login)
	assert.Equal(t, "green", got.Attributes["color"])

	byLogin, err := reg.GetByLogin(ctx, "kermit")
	require.NoError(t, err)
	require.NotNil(t, byLogin)
	assert.Equal(t, added.ID, byLogin.ID)
}

func TestRegistry_Add_KeepsCallerID(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	added, err := reg.Add(ctx, &Profile{ID: "frog-1", Login: "kermit"})
	require.NoError(t, err)
	assert.Equal(t, "frog-1", added.ID)
}

func TestRegistry_Add_Conflicts(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	_, err := reg.Add(ctx, &Profile{ID: "frog-1", Login: "kermit"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		profile *Profile
		code    string
	}{
		{
			name:    "duplicate id",
			profile: &Profile{ID: "frog-1", Login: "robin"},
			code:    "AUTH_PROFILE_EXISTS",
		},
		{
			name:    "duplicate login on a different id",
			profile: &Profile{ID: "frog-2", Login: "kermit"},
			code:    "AUTH_LOGIN_EXISTS",
		},
		{
			name:    "empty login",
			profile: &Profile{ID: "frog-3"},
			code:    "AUTH_INVALID_PROFILE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Add(ctx, tt.profile)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestRegistry_AddMany_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	_, err := reg.Add(ctx, &Profile{ID: "frog-1", Login: "kermit"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		batch []*Profile
		code  string
	}{
		{
			name: "login conflict with existing profile",
			batch: []*Profile{
				{Login: "robin"},
				{Login: "kermit"},
			},
			code: "AUTH_LOGIN_EXISTS",
		},
		{
			name: "duplicate login within batch",
			batch: []*Profile{
				{Login: "robin"},
				{Login: "robin"},
			},
			code: "AUTH_LOGIN_EXISTS",
		},
		{
			name: "duplicate id within batch",
			batch: []*Profile{
				{ID: "pig-1", Login: "piggy"},
				{ID: "pig-1", Login: "link"},
			},
			code: "AUTH_PROFILE_EXISTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := reg.AddMany(ctx, tt.batch)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Zero(t, n)

			// Nothing from the rejected batch may have been persisted.
			for _, p := range tt.batch {
				if p.Login == "kermit" {
					continue
				}
				got, gerr := reg.GetByLogin(ctx, p.Login)
				require.NoError(t, gerr)
				assert.Nil(t, got)
			}
		})
	}

	n, err := reg.AddMany(ctx, []*Profile{
		{Login: "robin"},
		{Login: "piggy"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRegistry_AddMany_Empty(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)

	n, err := reg.AddMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegistry_Update(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	added, err := reg.Add(ctx, &Profile{Login: "kermit", Attributes: map[string]any{"color": "green"}})
	require.NoError(t, err)

	updated, err := reg.Update(ctx, &Profile{
		ID:         added.ID,
		Login:      "kermit",
		Attributes: map[string]any{"color": "blue"},
	})
	require.NoError(t, err)
	assert.Equal(t, "blue", updated.Attributes["color"])
	assert.Equal(t, added.CreatedAt, updated.CreatedAt, "CreatedAt must survive updates")

	got, err := reg.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "blue", got.Attributes["color"])
}

func TestRegistry_Update_ChangesLogin(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	added, err := reg.Add(ctx, &Profile{Login: "kermit"})
	require.NoError(t, err)

	_, err = reg.Update(ctx, &Profile{ID: added.ID, Login: "thefrog"})
	require.NoError(t, err)

	old, err := reg.GetByLogin(ctx, "kermit")
	require.NoError(t, err)
	assert.Nil(t, old, "old login must be released")

	renamed, err := reg.GetByLogin(ctx, "thefrog")
	require.NoError(t, err)
	require.NotNil(t, renamed)
	assert.Equal(t, added.ID, renamed.ID)
}

func TestRegistry_Update_Errors(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	_, err := reg.Add(ctx, &Profile{ID: "frog-1", Login: "kermit"})
	require.NoError(t, err)
	_, err = reg.Add(ctx, &Profile{ID: "pig-1", Login: "piggy"})
	require.NoError(t, err)

	t.Run("unknown id", func(t *testing.T) {
		_, err := reg.Update(ctx, &Profile{ID: "nobody", Login: "ghost"})
		errutil.AssertErrorCode(t, err, "AUTH_PROFILE_NOT_FOUND")
	})

	t.Run("login taken by another profile", func(t *testing.T) {
		_, err := reg.Update(ctx, &Profile{ID: "pig-1", Login: "kermit"})
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_EXISTS")
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := reg.Update(ctx, &Profile{Login: "kermit"})
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PROFILE")
	})
}

func TestRegistry_Get_AbsentIsNil(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	got, err := reg.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = reg.GetByLogin(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistry_Remove_Cascades(t *testing.T) {
	ctx := context.Background()
	reg, _, credentials, sessions := newTestRegistry(t)

	added, err := reg.Add(ctx, &Profile{Login: "kermit"})
	require.NoError(t, err)

	require.NoError(t, credentials.Upsert(ctx, &Credential{
		ID:    added.ID,
		Login: "kermit",
		Hash:  "$pbkdf2-sha256$i=29000$c2FsdA$a2V5",
	}))
	require.NoError(t, sessions.Insert(ctx, &Session{
		Token:     "tok-1",
		ProfileID: added.ID,
		Login:     "kermit",
		Started:   time.Now(),
		LastSeen:  time.Now(),
	}))

	removed, err := reg.Remove(ctx, added.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := reg.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = credentials.GetByLogin(ctx, "kermit")
	assert.ErrorIs(t, err, ErrNotFound, "credential must be removed with the profile")

	_, err = sessions.GetByToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound, "sessions must be removed with the profile")
}

func TestRegistry_Remove_Absent(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	removed, err := reg.Remove(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = reg.RemoveByLogin(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegistry_RemoveByLogin(t *testing.T) {
	ctx := context.Background()
	reg, _, _, _ := newTestRegistry(t)

	_, err := reg.Add(ctx, &Profile{Login: "kermit"})
	require.NoError(t, err)

	removed, err := reg.RemoveByLogin(ctx, "kermit")
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := reg.GetByLogin(ctx, "kermit")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProfile_Clone(t *testing.T) {
	p := &Profile{
		ID:         "frog-1",
		Login:      "kermit",
		Attributes: map[string]any{"color": "green"},
	}

	c := p.Clone()
	c.Attributes["color"] = "blue"

	assert.Equal(t, "green", p.Attributes["color"], "clone must not share the attribute map")

	var nilProfile *Profile
	assert.Nil(t, nilProfile.Clone())
}
