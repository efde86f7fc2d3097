// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import "errors"

// Repository sentinel errors. Services translate these into coded errors
// so callers never depend on a concrete storage backend.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned by a repository insert when a record
	// with the same id already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrDuplicateLogin is returned by a repository insert when a
	// different record already holds the login.
	ErrDuplicateLogin = errors.New("duplicate login")
)
