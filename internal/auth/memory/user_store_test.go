// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/auth/memory"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()

	t.Run("insert then find", func(t *testing.T) {
		store := memory.NewUserStore()
		user := &auth.UserRecord{ID: ulid.Make(), Username: "alice", PasswordHash: "h"}
		require.NoError(t, store.Insert(ctx, user))

		got, err := store.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		store := memory.NewUserStore()
		require.NoError(t, store.Insert(ctx, &auth.UserRecord{ID: ulid.Make(), Username: "alice"}))

		got, err := store.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		got.Fullname = "mutated"

		again, err := store.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, again.Fullname)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := memory.NewUserStore().FindByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("duplicate username", func(t *testing.T) {
		store := memory.NewUserStore()
		require.NoError(t, store.Insert(ctx, &auth.UserRecord{ID: ulid.Make(), Username: "alice"}))

		err := store.Insert(ctx, &auth.UserRecord{ID: ulid.Make(), Username: "alice"})
		assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("concurrent inserts of one username", func(t *testing.T) {
		store := memory.NewUserStore()
		const racers = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if store.Insert(ctx, &auth.UserRecord{ID: ulid.Make(), Username: "racer"}) == nil {
					mu.Lock()
					success++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, success)
		assert.Equal(t, 1, store.Len())
	})
}
