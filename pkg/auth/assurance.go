// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// WithinWindow reports whether now falls strictly inside the open
// interval (start, stop). Equality with either boundary counts as
// outside, and a malformed window (stop before start) is never valid.
func WithinWindow(start, stop, now time.Time) bool {
	if stop.Before(start) {
		return false
	}
	return now.After(start) && now.Before(stop)
}

// CheckWindows reports whether the session is still valid at the current
// time under the given idle and absolute timeouts. See CheckWindowsAt.
func CheckWindows(s *Session, idle, absolute time.Duration) (bool, error) {
	return CheckWindowsAt(s, idle, absolute, time.Now())
}

// CheckWindowsAt reports whether the session is valid at the given
// instant. At least one timeout must be set or a configuration error is
// returned. When idle is set, now must fall strictly inside
// (LastSeen, LastSeen+idle); when absolute is set, strictly inside
// (Started, Started+absolute). Both checks must pass when both timeouts
// are configured. The session is invalid the instant either window is
// exceeded - landing exactly on a boundary counts as expired, which is a
// deliberate strict-inequality policy.
func CheckWindowsAt(s *Session, idle, absolute time.Duration, now time.Time) (bool, error) {
	if idle <= 0 && absolute <= 0 {
		return false, oops.Code("AUTH_NO_TIMEOUTS").
			Errorf("no timeouts were specified - set an idle or absolute timeout")
	}

	if idle > 0 && !WithinWindow(s.LastSeen, s.LastSeen.Add(idle), now) {
		return false, nil
	}
	if absolute > 0 && !WithinWindow(s.Started, s.Started.Add(absolute), now) {
		return false, nil
	}
	return true, nil
}
