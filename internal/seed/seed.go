// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

// Package seed loads profile seed files and applies them through the
// auth facade. A seed file is YAML, validated against a JSON Schema
// generated from the File struct.
package seed

import (
	"context"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/tropicsauth/tropics"
	"github.com/tropicsauth/tropics/pkg/auth"
)

// ProfileSeed describes one profile to register. Passphrase is optional;
// when present it is hashed and stored after the profile is created.
type ProfileSeed struct {
	ID         string         `yaml:"id,omitempty" json:"id,omitempty" jsonschema:"description=Profile id; generated when omitted"`
	Login      string         `yaml:"login" json:"login" jsonschema:"required,minLength=1,description=Unique login name"`
	Passphrase string         `yaml:"passphrase,omitempty" json:"passphrase,omitempty" jsonschema:"description=Initial passphrase; no credential is created when omitted"`
	Attributes map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty" jsonschema:"description=Arbitrary host-owned fields"`
}

// File is a parsed seed file.
type File struct {
	Profiles []ProfileSeed `yaml:"profiles" json:"profiles" jsonschema:"required,description=Profiles to register"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").
			With("path", path).
			Wrap(err)
	}

	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code("SEED_INVALID").
			With("path", path).
			Wrap(err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("SEED_PARSE_FAILED").
			With("path", path).
			Wrap(err)
	}
	if len(f.Profiles) == 0 {
		return nil, oops.Code("SEED_INVALID").
			With("path", path).
			Errorf("seed file declares no profiles")
	}
	return &f, nil
}

// Apply registers all profiles from the file all-or-nothing, then sets
// passphrases for seeds that carry one. Returns the number of profiles
// registered.
func Apply(ctx context.Context, a *tropics.Auth, f *File) (int, error) {
	profiles := make([]*auth.Profile, 0, len(f.Profiles))
	for _, s := range f.Profiles {
		profiles = append(profiles, &auth.Profile{
			ID:         s.ID,
			Login:      s.Login,
			Attributes: s.Attributes,
		})
	}

	n, err := a.AddProfiles(ctx, profiles)
	if err != nil {
		return 0, err
	}

	for _, s := range f.Profiles {
		if s.Passphrase == "" {
			continue
		}
		if err := a.SetPassphrase(ctx, s.Login, s.Passphrase); err != nil {
			return n, oops.Code("SEED_PASSPHRASE_FAILED").
				With("login", s.Login).
				Wrap(err)
		}
	}
	return n, nil
}
