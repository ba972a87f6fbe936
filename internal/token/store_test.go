package token

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) Store {
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
		require.NoError(t, err)
		return store
	}

	t.Run("load returns empty when nothing persisted", func(t *testing.T) {
		store := newStore(t)

		token, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("save then load roundtrips", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Save(ctx, "tok-1"))

		token, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	})

	t.Run("save overwrites previous token", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Save(ctx, "tok-1"))
		require.NoError(t, store.Save(ctx, "tok-2"))

		token, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-2", token)
	})

	t.Run("clear removes the token", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.Save(ctx, "tok-1"))
		require.NoError(t, store.Clear(ctx))

		token, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("token survives reopening the database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.db")

		store, err := OpenSQLite(path)
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, "tok-persisted"))

		reopened, err := OpenSQLite(path)
		require.NoError(t, err)

		token, err := reopened.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-persisted", token)
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save(ctx, "tok-mem"))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-mem", token)

	require.NoError(t, store.Clear(ctx))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}
