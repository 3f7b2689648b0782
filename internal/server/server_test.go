package server_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NaokiLH/kvs/internal/engine"
	"github.com/NaokiLH/kvs/internal/server"
	"github.com/NaokiLH/kvs/pkg/fs"
	"github.com/NaokiLH/kvs/pkg/kvsclient"
)

func startTestServer(t *testing.T) *kvsclient.Client {
	t.Helper()

	store, err := engine.OpenWithFS(fs.NewFake(), "/data")
	require.NoError(t, err)

	srv, err := server.New("127.0.0.1:0", 4, func() engine.Engine { return store.Clone() })
	require.NoError(t, err)

	go func() { _ = srv.Serve() }()

	t.Cleanup(func() { _ = srv.Close(); _ = store.Close() })

	return kvsclient.New(srv.Addr().String())
}

func TestServerRoundTripsSetGetRemove(t *testing.T) {
	t.Parallel()

	client := startTestServer(t)

	require.NoError(t, client.Set("a", "1"))

	value, ok, err := client.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", value)

	require.NoError(t, client.Remove("a"))

	_, ok, err = client.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServerGetMissReturnsOkFalse(t *testing.T) {
	t.Parallel()

	client := startTestServer(t)

	_, ok, err := client.Get("never-set")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServerRemoveMissingKeyReturnsKeyNotFound(t *testing.T) {
	t.Parallel()

	client := startTestServer(t)

	err := client.Remove("never-set")
	require.ErrorIs(t, err, kvsclient.ErrKeyNotFound)
}
