// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-SHA256 parameters.
const (
	pbkdf2Rounds  = 29000
	pbkdf2SaltLen = 16 // salt length in bytes
	pbkdf2KeyLen  = 32 // output length in bytes
)

// ErrEmptyPassphrase is returned when attempting to hash an empty passphrase.
var ErrEmptyPassphrase = oops.Code("AUTH_EMPTY_PASSPHRASE").Errorf("passphrase cannot be empty")

// Hasher provides one-way adaptive passphrase hashing. Hash is salted and
// therefore non-deterministic; Verify is the only way to compare a
// plaintext against a digest. The engine never inspects digest internals.
type Hasher interface {
	// Hash produces a salted digest of the passphrase.
	Hash(passphrase string) (string, error)

	// Verify checks if the passphrase matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on
	// a malformed digest.
	Verify(passphrase, digest string) (bool, error)
}

// PBKDF2Hasher implements Hasher using PBKDF2-SHA256.
type PBKDF2Hasher struct {
	rounds int
}

// NewPBKDF2Hasher creates a PBKDF2Hasher with the default round count.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{rounds: pbkdf2Rounds}
}

// Hash produces a PBKDF2-SHA256 digest of the passphrase.
func (h *PBKDF2Hasher) Hash(passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrEmptyPassphrase
	}

	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, h.rounds, pbkdf2KeyLen, sha256.New)

	// Encode as PHC string format
	// $pbkdf2-sha256$i=29000$<salt>$<key>
	encoded := fmt.Sprintf(
		"$pbkdf2-sha256$i=%d$%s$%s",
		h.rounds,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify checks if the passphrase matches the digest.
func (h *PBKDF2Hasher) Verify(passphrase, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 5 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid digest format")
	}

	if parts[1] != "pbkdf2-sha256" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var rounds int
	if _, err := fmt.Sscanf(parts[2], "i=%d", &rounds); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if rounds <= 0 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid round count: %d", rounds)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	expectedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(expectedKey) == 0 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("empty digest key")
	}

	computed := pbkdf2.Key([]byte(passphrase), salt, rounds, len(expectedKey), sha256.New)

	if subtle.ConstantTimeCompare(computed, expectedKey) == 1 {
		return true, nil
	}
	return false, nil
}
