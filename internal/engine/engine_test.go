package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NaokiLH/kvs/internal/engine"
	"github.com/NaokiLH/kvs/pkg/fs"
)

func openFake(t *testing.T) (*engine.KvStore, fs.FS) {
	t.Helper()

	fsys := fs.NewFake()

	store, err := engine.OpenWithFS(fsys, "/data")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store, fsys
}

func TestSetThenGetReturnsValue(t *testing.T) {
	t.Parallel()

	store, _ := openFake(t)

	require.NoError(t, store.Set("a", "1"))

	value, ok, err := store.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", value)
}

func TestGetMissReturnsFalse(t *testing.T) {
	t.Parallel()

	store, _ := openFake(t)

	_, ok, err := store.Get("nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOverwriteReturnsLatestValue(t *testing.T) {
	t.Parallel()

	store, _ := openFake(t)

	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Set("a", "2"))

	value, ok, err := store.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", value)
}

func TestRemoveThenGetMisses(t *testing.T) {
	t.Parallel()

	store, _ := openFake(t)

	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Remove("a"))

	_, ok, err := store.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveAfterRemoveFailsWithKeyNotFound(t *testing.T) {
	t.Parallel()

	store, _ := openFake(t)

	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Remove("a"))

	err := store.Remove("a")
	require.Error(t, err)
	require.True(t, errors.Is(err, engine.ErrKeyNotFound))
}

func TestRemoveMissingKeyFails(t *testing.T) {
	t.Parallel()

	store, _ := openFake(t)

	err := store.Remove("never-set")
	require.True(t, errors.Is(err, engine.ErrKeyNotFound))
}

func TestOpenEmptyDirectoryThenGetMisses(t *testing.T) {
	t.Parallel()

	store, _ := openFake(t)

	_, ok, err := store.Get("anything")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRestartReplaysLogAndPreservesBindings(t *testing.T) {
	t.Parallel()

	fsys := fs.NewFake()

	store, err := engine.OpenWithFS(fsys, "/data")
	require.NoError(t, err)

	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Set("b", "2"))
	require.NoError(t, store.Remove("a"))
	require.NoError(t, store.Close())

	reopened, err := engine.OpenWithFS(fsys, "/data")
	require.NoError(t, err)

	t.Cleanup(func() { _ = reopened.Close() })

	_, ok, err := reopened.Get("a")
	require.NoError(t, err)
	require.False(t, ok)

	value, ok, err := reopened.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", value)
}

func TestOpenWithMismatchedEngineFails(t *testing.T) {
	t.Parallel()

	fsys := fs.NewFake()

	require.NoError(t, fsys.MkdirAll("/data", 0o750))
	require.NoError(t, fsys.WriteFile("/data/engine", []byte("sled"), 0o644))

	_, err := engine.OpenWithFS(fsys, "/data")
	require.Error(t, err)
	require.True(t, errors.Is(err, engine.ErrWrongEngine))
}

func TestCloneSharesDataWithOriginal(t *testing.T) {
	t.Parallel()

	store, _ := openFake(t)

	require.NoError(t, store.Set("a", "1"))

	clone := store.Clone()
	t.Cleanup(func() { _ = clone.Close() })

	value, ok, err := clone.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", value)

	require.NoError(t, clone.Set("b", "2"))

	value, ok, err = store.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", value)
}
