// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tropics Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tropicsauth/tropics/pkg/auth"
	"github.com/tropicsauth/tropics/pkg/auth/postgres"
)

// setupPostgres starts a PostgreSQL container, applies the auth schema,
// and returns a connected pool.
func setupPostgres() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("tropics_test"),
		pgcontainer.WithUsername("tropics"),
		pgcontainer.WithPassword("tropics"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := postgres.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := postgres.NewPool(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup, nil
}

var _ = Describe("Postgres repositories", func() {
	var (
		pool        *pgxpool.Pool
		cleanup     func()
		profiles    *postgres.ProfileRepository
		credentials *postgres.CredentialRepository
		sessions    *postgres.SessionRepository
		ctx         context.Context
	)

	BeforeEach(func() {
		var err error
		pool, cleanup, err = setupPostgres()
		Expect(err).NotTo(HaveOccurred())

		profiles = postgres.NewProfileRepository(pool)
		credentials = postgres.NewCredentialRepository(pool)
		sessions = postgres.NewSessionRepository(pool)
		ctx = context.Background()
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("ProfileRepository", func() {
		It("round-trips a profile with attributes", func() {
			p := &auth.Profile{
				ID:         "frog-1",
				Login:      "kermit",
				Attributes: map[string]any{"color": "green"},
				CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
				UpdatedAt:  time.Now().UTC().Truncate(time.Microsecond),
			}

			Expect(profiles.Upsert(ctx, p)).To(Succeed())

			got, err := profiles.Get(ctx, "frog-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Login).To(Equal("kermit"))
			Expect(got.Attributes).To(HaveKeyWithValue("color", "green"))
		})

		It("rejects a second profile with the same login", func() {
			now := time.Now()
			Expect(profiles.Upsert(ctx, &auth.Profile{
				ID: "frog-1", Login: "kermit", CreatedAt: now, UpdatedAt: now,
			})).To(Succeed())

			err := profiles.Upsert(ctx, &auth.Profile{
				ID: "frog-2", Login: "kermit", CreatedAt: now, UpdatedAt: now,
			})
			Expect(err).To(MatchError(auth.ErrDuplicateLogin))
		})

		It("inserts a batch atomically", func() {
			now := time.Now()
			err := profiles.InsertMany(ctx, []*auth.Profile{
				{ID: "frog-1", Login: "kermit", CreatedAt: now, UpdatedAt: now},
				{ID: "frog-2", Login: "kermit", CreatedAt: now, UpdatedAt: now},
			})
			Expect(err).To(MatchError(auth.ErrDuplicateLogin))

			all, err := profiles.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("returns ErrNotFound for an absent profile", func() {
			_, err := profiles.Get(ctx, "nobody")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("CredentialRepository", func() {
		It("stores and clears a hash", func() {
			now := time.Now()
			cred := &auth.Credential{
				ID: "frog-1", Login: "kermit",
				Hash:    "$pbkdf2-sha256$i=29000$c2FsdA$a2V5",
				Updated: now,
			}
			Expect(credentials.Upsert(ctx, cred)).To(Succeed())

			got, err := credentials.GetByLogin(ctx, "kermit")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Hash).To(Equal(cred.Hash))

			cred.Hash = ""
			Expect(credentials.Upsert(ctx, cred)).To(Succeed())

			got, err = credentials.GetByLogin(ctx, "kermit")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Hash).To(BeEmpty())
		})
	})

	Describe("SessionRepository", func() {
		It("never rewinds last_seen_at", func() {
			now := time.Now().UTC().Truncate(time.Microsecond)
			Expect(sessions.Insert(ctx, &auth.Session{
				Token: "tok-1", ProfileID: "frog-1", Login: "kermit",
				Started: now, LastSeen: now,
			})).To(Succeed())

			Expect(sessions.UpdateLastSeen(ctx, "tok-1", now.Add(-time.Minute))).To(Succeed())

			got, err := sessions.GetByToken(ctx, "tok-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.LastSeen).To(BeTemporally("==", now))
		})

		It("deletes stale sessions by either cutoff", func() {
			now := time.Now()
			Expect(sessions.Insert(ctx, &auth.Session{
				Token: "tok-idle", ProfileID: "frog-1", Login: "a",
				Started: now.Add(-time.Minute), LastSeen: now.Add(-30 * time.Second),
			})).To(Succeed())
			Expect(sessions.Insert(ctx, &auth.Session{
				Token: "tok-old", ProfileID: "frog-1", Login: "b",
				Started: now.Add(-time.Hour), LastSeen: now,
			})).To(Succeed())
			Expect(sessions.Insert(ctx, &auth.Session{
				Token: "tok-live", ProfileID: "frog-1", Login: "c",
				Started: now, LastSeen: now,
			})).To(Succeed())

			n, err := sessions.DeleteStale(ctx, now.Add(-10*time.Second), now.Add(-30*time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(2)))

			_, err = sessions.GetByToken(ctx, "tok-live")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
