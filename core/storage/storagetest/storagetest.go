// Package storagetest holds the behavior every storage.Backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/parley/core/storage"
)

// Run exercises newBackend against the Backend contract. Each subtest gets a
// fresh backend.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Get(ctx, "absent")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("set then get", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "memory:alice", []byte(`{"a":1}`)))
		got, err := b.Get(ctx, "memory:alice")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "k", []byte("one")))
		require.NoError(t, b.Set(ctx, "k", []byte("two")))
		got, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))
	})

	t.Run("remove", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "k", []byte("v")))
		require.NoError(t, b.Remove(ctx, "k"))
		_, err := b.Get(ctx, "k")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
		assert.NoError(t, b.Remove(ctx, "never-set"))
	})

	t.Run("keys by prefix in order", func(t *testing.T) {
		b := newBackend(t)
		for _, k := range []string{"memory:carol", "offline:queue", "memory:alice", "memory:bob"} {
			require.NoError(t, b.Set(ctx, k, []byte("x")))
		}
		keys, err := b.Keys(ctx, "memory:")
		require.NoError(t, err)
		assert.Equal(t, []string{"memory:alice", "memory:bob", "memory:carol"}, keys)
	})

	t.Run("clear", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "a", []byte("1")))
		require.NoError(t, b.Set(ctx, "b", []byte("2")))
		require.NoError(t, b.Clear(ctx))
		keys, err := b.Keys(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("json helpers", func(t *testing.T) {
		b := newBackend(t)
		type doc struct {
			Name string `json:"name"`
		}
		require.NoError(t, storage.SetJSON(ctx, b, "doc", doc{Name: "ada"}))
		var got doc
		found, err := storage.GetJSON(ctx, b, "doc", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "ada", got.Name)

		found, err = storage.GetJSON(ctx, b, "nothing", &got)
		require.NoError(t, err)
		assert.False(t, found)
	})
}
