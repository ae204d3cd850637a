package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	store, err := Open(Config{File: ":memory:"})
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "mgcAttach_step1", "true"))
	require.NoError(t, store.Set(ctx, "mgcAttach_step1", "false"))
	value, ok, err := store.Get(ctx, "mgcAttach_step1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "false", value)

	require.NoError(t, store.Delete(ctx, "mgcAttach_step1", "never-set"))
	_, ok, err = store.Get(ctx, "mgcAttach_step1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJSON(t *testing.T) {
	store, err := Open(Config{File: filepath.Join(t.TempDir(), "state", "kv.db")})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	type entry struct {
		Name   string   `json:"name"`
		Keys   []string `json:"keys"`
		Copies int      `json:"copies"`
	}
	in := []entry{
		{Name: "Portal", Copies: 2},
		{Name: "Half-Life", Keys: []string{"AAAAA-BBBBB-CCCCC"}},
	}
	require.NoError(t, SetJSON(ctx, store, "mgcCache", in))

	out, ok, err := GetJSON[[]entry](ctx, store, "mgcCache")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, out)

	require.NoError(t, store.Set(ctx, "broken", "{"))
	_, _, err = GetJSON[[]entry](ctx, store, "broken")
	require.Error(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}
