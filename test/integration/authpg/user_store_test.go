// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

//go:build integration

package authpg_test

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/auth/postgres"
)

func newRecord(username string) *auth.UserRecord {
	return &auth.UserRecord{
		ID:           ulid.Make(),
		Username:     username,
		Fullname:     "User Zero",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

var _ = Describe("Postgres UserStore", func() {
	var users *postgres.UserStore

	BeforeEach(func() {
		users = postgres.NewUserStore(env.pool)
	})

	It("round-trips a record", func() {
		record := newRecord(uniqueUsername("user0"))
		Expect(users.Insert(env.ctx, record)).To(Succeed())

		found, err := users.FindByUsername(env.ctx, record.Username)
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(record.ID))
		Expect(found.Username).To(Equal(record.Username))
		Expect(found.Fullname).To(Equal(record.Fullname))
		Expect(found.PasswordHash).To(Equal(record.PasswordHash))
		Expect(found.CreatedAt).To(BeTemporally("~", record.CreatedAt, time.Second))
	})

	It("reports unknown usernames as not found", func() {
		_, err := users.FindByUsername(env.ctx, uniqueUsername("ghost"))
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("matches usernames exactly", func() {
		username := uniqueUsername("user0")
		Expect(users.Insert(env.ctx, newRecord(username))).To(Succeed())

		_, err := users.FindByUsername(env.ctx, "USER0"+username[len("user0"):])
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("rejects a duplicate username", func() {
		username := uniqueUsername("user0")
		Expect(users.Insert(env.ctx, newRecord(username))).To(Succeed())

		err := users.Insert(env.ctx, newRecord(username))
		Expect(err).To(MatchError(auth.ErrDuplicateUsername))
	})

	It("admits exactly one of many concurrent inserts for a username", func() {
		username := uniqueUsername("racer")
		const attempts = 16

		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			succeeded  int
			duplicates int
		)
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				err := users.Insert(env.ctx, newRecord(username))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
					return
				}
				Expect(err).To(MatchError(auth.ErrDuplicateUsername))
				duplicates++
			}()
		}
		wg.Wait()

		Expect(succeeded).To(Equal(1))
		Expect(duplicates).To(Equal(attempts - 1))
	})

	It("enforces the trimmed-username check", func() {
		err := users.Insert(env.ctx, newRecord(" padded "))
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(auth.ErrDuplicateUsername))
	})
})
