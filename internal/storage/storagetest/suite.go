// Package storagetest holds behaviour checks shared by every Store backend.
package storagetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/checkin-pay/internal/storage"
)

// Run exercises a Store implementation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set get delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", []byte("v1")))
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(got))

		require.NoError(t, s.Set(ctx, "k", []byte("v2")))
		got, err = s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))

		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "k"), "delete of a missing key is a no-op")
		_, err = s.Get(ctx, "k")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("update nil leaves value untouched", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "k", []byte("keep")))

		err := s.Update(ctx, "k", func(cur []byte, found bool) ([]byte, error) {
			assert.True(t, found)
			assert.Equal(t, "keep", string(cur))
			return nil, nil
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "keep", string(got))
	})

	t.Run("update error aborts write", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		boom := errors.New("boom")

		err := s.Update(ctx, "k", func(cur []byte, found bool) ([]byte, error) {
			assert.False(t, found)
			return []byte("x"), boom
		})
		assert.ErrorIs(t, err, boom)
		_, err = s.Get(ctx, "k")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("concurrent updates are linearizable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const workers = 16
		var wg sync.WaitGroup
		winners := make(chan int, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.Update(ctx, "lock", func(cur []byte, found bool) ([]byte, error) {
					if found {
						return nil, nil
					}
					winners <- i
					return []byte(strconv.Itoa(i)), nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()
		close(winners)

		var got []int
		for w := range winners {
			got = append(got, w)
		}
		require.Len(t, got, 1, "exactly one writer may observe the key as absent")
		stored, err := s.Get(ctx, "lock")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(got[0]), string(stored))
	})

	t.Run("scan with prefix and scope", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := storage.Scope(s, "sess-a")
		b := storage.Scope(s, "sess-b")
		require.NoError(t, a.Set(ctx, "hold/DINING/1", []byte("a1")))
		require.NoError(t, a.Set(ctx, "hold/ROOM/2", []byte("a2")))
		require.NoError(t, a.Set(ctx, "confirm/X", []byte("ax")))
		require.NoError(t, b.Set(ctx, "hold/ROOM/9", []byte("b9")))

		var scoped []string
		require.NoError(t, a.Scan(ctx, "hold/", func(key string, _ []byte) error {
			scoped = append(scoped, key)
			return nil
		}))
		assert.Equal(t, []string{"hold/DINING/1", "hold/ROOM/2"}, scoped)

		var sessions []string
		require.NoError(t, s.Scan(ctx, storage.SessionPrefix(), func(key string, _ []byte) error {
			sid, rest, ok := storage.SplitSessionKey(key)
			require.True(t, ok)
			if rest == "hold/ROOM/9" || rest == "hold/ROOM/2" {
				sessions = append(sessions, sid)
			}
			return nil
		}))
		assert.ElementsMatch(t, []string{"sess-a", "sess-b"}, sessions)
	})
}
