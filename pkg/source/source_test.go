package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/pin"
	. "github.com/pseudomuto/anchor/pkg/source"
	"github.com/stretchr/testify/require"
)

func TestLive(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "tables"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "roles.sql"), []byte("CREATE ROLE app;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "tables", "users.sql"), []byte("CREATE TABLE users ();"), 0o644))

	src := NewLive(base)

	t.Run("loads existing components", func(t *testing.T) {
		content, ok, err := src.Load("tables/users.sql")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "CREATE TABLE users ();", string(content))
	})

	t.Run("reports missing components without error", func(t *testing.T) {
		_, ok, err := src.Load("tables/missing.sql")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("refuses paths escaping the base directory", func(t *testing.T) {
		outside := filepath.Join(filepath.Dir(base), "secret.sql")
		require.NoError(t, os.WriteFile(outside, []byte("nope"), 0o644))

		_, ok, err := src.Load("../" + filepath.Base(outside))
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestPinned(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "tables"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "roles.sql"), []byte("CREATE ROLE app;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "tables", "users.sql"), []byte("CREATE TABLE users ();"), 0o644))

	store := pin.NewStore(t.TempDir())
	root, err := pin.Snapshot(store, base)
	require.NoError(t, err)

	src, err := NewPinned(store, root)
	require.NoError(t, err)

	t.Run("loads components from the snapshot", func(t *testing.T) {
		content, ok, err := src.Load("tables/users.sql")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "CREATE TABLE users ();", string(content))
	})

	t.Run("reports unpinned names without error", func(t *testing.T) {
		_, ok, err := src.Load("tables/missing.sql")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("survives edits to the live tree", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(base, "roles.sql"), []byte("DROP ROLE app;"), 0o644))

		content, ok, err := src.Load("roles.sql")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "CREATE ROLE app;", string(content))
	})

	t.Run("fails to construct from an unknown root", func(t *testing.T) {
		_, err := NewPinned(store, "00000000000000000000000000000000")
		require.True(t, errors.Is(err, pin.ErrNotFound))
	})

	t.Run("fails when used without a mapping", func(t *testing.T) {
		_, _, err := (&Pinned{}).Load("roles.sql")
		require.True(t, errors.Is(err, ErrUninitialized))
	})
}

func TestPinnedMatchesLive(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "views"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "views", "active.sql"), []byte("SELECT 1"), 0o644))

	store := pin.NewStore(t.TempDir())
	root, err := pin.Snapshot(store, base)
	require.NoError(t, err)

	pinned, err := NewPinned(store, root)
	require.NoError(t, err)
	live := NewLive(base)

	fromLive, ok, err := live.Load("views/active.sql")
	require.NoError(t, err)
	require.True(t, ok)

	fromPin, ok, err := pinned.Load("views/active.sql")
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, fromLive, fromPin)
}
