package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/mlredact-addin/token"
	"github.com/jrsteele09/mlredact-addin/token/sqlitestore"
)

func openStore(t *testing.T, path string) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(context.Background(), path, sqlitestore.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, ":memory:")

	_, ok, err := s.Get(ctx, token.StorageKey)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, token.StorageKey, "v1"))
	require.NoError(t, s.Set(ctx, token.StorageKey, "v2"))

	v, ok, err := s.Get(ctx, token.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)

	require.NoError(t, s.Delete(ctx, token.StorageKey))
	_, ok, err = s.Get(ctx, token.StorageKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_SubscribeSeesOtherConnection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.db")
	taskpane := openStore(t, path)
	dialog := openStore(t, path)

	seen := make(chan string, 4)
	cancel, err := taskpane.Subscribe(ctx, token.StorageKey, func(v string) { seen <- v })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, dialog.Set(ctx, token.StorageKey, "from-dialog"))

	select {
	case v := <-seen:
		require.Equal(t, "from-dialog", v)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not observe the write")
	}

	require.NoError(t, dialog.Delete(ctx, token.StorageKey))
	select {
	case v := <-seen:
		require.Empty(t, v)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not observe the delete")
	}
}
