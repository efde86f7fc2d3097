// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

// Package auth provides the credential and session lifecycle engine for
// Tropics.
//
// # Domain Types
//
// Domain types (Profile, Credential, Session) are plain records; the
// repositories own the persisted state and every value handed out by a
// repository or service is a transient copy. Mutating a returned record
// has no effect until it is written back through a service operation.
//
// # Services
//
// Service types coordinate domain operations:
//   - Registry - profile CRUD with id/login uniqueness enforcement
//   - Credentials - passphrase hashing, verification and removal
//   - Sessions - session start, validation, refresh and termination
//
// Services are created with New* constructors that validate dependencies.
// Session validity is decided by the window-check functions in this
// package: both the idle (sliding) and absolute windows are open
// intervals, so a timestamp landing exactly on a window boundary counts
// as expired.
package auth
