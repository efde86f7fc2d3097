// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tropicsauth/tropics/pkg/errutil"
)

func TestWithinWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		stop  time.Time
		now   time.Time
		want  bool
	}{
		{
			name:  "inside window",
			start: base,
			stop:  base.Add(10 * time.Second),
			now:   base.Add(5 * time.Second),
			want:  true,
		},
		{
			name:  "just after start",
			start: base,
			stop:  base.Add(10 * time.Second),
			now:   base.Add(time.Nanosecond),
			want:  true,
		},
		{
			name:  "just before stop",
			start: base,
			stop:  base.Add(10 * time.Second),
			now:   base.Add(10*time.Second - time.Nanosecond),
			want:  true,
		},
		{
			name:  "exactly at start",
			start: base,
			stop:  base.Add(10 * time.Second),
			now:   base,
			want:  false,
		},
		{
			name:  "exactly at stop",
			start: base,
			stop:  base.Add(10 * time.Second),
			now:   base.Add(10 * time.Second),
			want:  false,
		},
		{
			name:  "before start",
			start: base,
			stop:  base.Add(10 * time.Second),
			now:   base.Add(-time.Second),
			want:  false,
		},
		{
			name:  "after stop",
			start: base,
			stop:  base.Add(10 * time.Second),
			now:   base.Add(11 * time.Second),
			want:  false,
		},
		{
			name:  "stop before start",
			start: base,
			stop:  base.Add(-10 * time.Second),
			now:   base.Add(-5 * time.Second),
			want:  false,
		},
		{
			name:  "zero-width window",
			start: base,
			stop:  base,
			now:   base,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinWindow(tt.start, tt.stop, tt.now))
		})
	}
}

func TestCheckWindowsAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session := &Session{
		Token:    "tok",
		Login:    "kermit",
		Started:  base,
		LastSeen: base,
	}

	tests := []struct {
		name     string
		idle     time.Duration
		absolute time.Duration
		now      time.Time
		want     bool
	}{
		{
			name:     "fresh session passes both windows",
			idle:     10 * time.Second,
			absolute: 20 * time.Second,
			now:      base.Add(5 * time.Second),
			want:     true,
		},
		{
			name:     "idle window exceeded",
			idle:     10 * time.Second,
			absolute: 20 * time.Second,
			now:      base.Add(11 * time.Second),
			want:     false,
		},
		{
			name:     "exactly on idle boundary counts as expired",
			idle:     10 * time.Second,
			absolute: 20 * time.Second,
			now:      base.Add(10 * time.Second),
			want:     false,
		},
		{
			name:     "absolute window exceeded with idle disabled",
			absolute: 20 * time.Second,
			now:      base.Add(21 * time.Second),
			want:     false,
		},
		{
			name:     "exactly on absolute boundary counts as expired",
			absolute: 20 * time.Second,
			now:      base.Add(20 * time.Second),
			want:     false,
		},
		{
			name: "idle only, inside window",
			idle: 10 * time.Second,
			now:  base.Add(9 * time.Second),
			want: true,
		},
		{
			name:     "absolute only, inside window",
			absolute: 20 * time.Second,
			now:      base.Add(19 * time.Second),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckWindowsAt(session, tt.idle, tt.absolute, tt.now)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckWindowsAt_RefreshedSession(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// A validated session has its idle window slide while the absolute
	// window stays anchored at Started.
	session := &Session{
		Started:  base,
		LastSeen: base.Add(15 * time.Second),
	}

	got, err := CheckWindowsAt(session, 10*time.Second, 20*time.Second, base.Add(18*time.Second))
	assert.NoError(t, err)
	assert.True(t, got, "sliding idle window should still be open")

	got, err = CheckWindowsAt(session, 10*time.Second, 20*time.Second, base.Add(21*time.Second))
	assert.NoError(t, err)
	assert.False(t, got, "absolute window caps the lifetime regardless of activity")
}

func TestCheckWindowsAt_NoTimeouts(t *testing.T) {
	session := &Session{Started: time.Now(), LastSeen: time.Now()}

	_, err := CheckWindowsAt(session, 0, 0, time.Now())
	errutil.AssertErrorCode(t, err, "AUTH_NO_TIMEOUTS")
}
