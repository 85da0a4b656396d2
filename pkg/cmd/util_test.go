package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/anchor/pkg/config"
	"github.com/pseudomuto/anchor/pkg/pin"
	"github.com/pseudomuto/anchor/pkg/project"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func testProject(t *testing.T) (*config.Config, *project.Migration) {
	t.Helper()

	root := t.TempDir()
	cfg := &config.Config{
		Components: filepath.Join(root, "db", "components"),
		Migrations: filepath.Join(root, "db", "migrations"),
		Store:      filepath.Join(root, ".anchor", "objects"),
	}
	require.NoError(t, os.MkdirAll(cfg.Components, 0o755))

	dir := filepath.Join(cfg.Migrations, "20240101000000_users")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	m := &project.Migration{Name: "20240101000000_users", Dir: dir}

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Components, "roles.sql"),
		[]byte(`CREATE ROLE {{ .vars.role | ident }};`),
		0o644,
	))
	require.NoError(t, os.WriteFile(
		m.ScriptPath(),
		[]byte("{{ include \"roles.sql\" }}\nCREATE TABLE {{ .vars.table | ident }} ();\n"),
		0o644,
	))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "vars.yaml"),
		[]byte("role: reporting\ntable: users\n"),
		0o644,
	))

	return cfg, m
}

func TestRenderMigration(t *testing.T) {
	t.Run("renders live with the migration's variables", func(t *testing.T) {
		cfg, m := testProject(t)

		sql, err := renderMigration(cfg, m, false, "")
		require.NoError(t, err)
		golden.Assert(t, string(sql), "rendered.sql")
	})

	t.Run("an explicit vars file wins", func(t *testing.T) {
		cfg, m := testProject(t)

		override := filepath.Join(t.TempDir(), "override.yaml")
		require.NoError(t, os.WriteFile(override, []byte("role: admin\ntable: users\n"), 0o644))

		sql, err := renderMigration(cfg, m, false, override)
		require.NoError(t, err)
		require.Contains(t, string(sql), `CREATE ROLE "admin";`)
	})

	t.Run("refuses pinned renders for unpinned migrations", func(t *testing.T) {
		cfg, m := testProject(t)

		_, err := renderMigration(cfg, m, true, "")
		require.ErrorContains(t, err, "not pinned")
	})

	t.Run("pinned renders survive component edits", func(t *testing.T) {
		cfg, m := testProject(t)

		root, err := pin.Snapshot(pin.NewStore(cfg.Store), cfg.Components)
		require.NoError(t, err)
		require.NoError(t, pin.WriteLockFile(m.LockPath(), root))

		before, err := renderMigration(cfg, m, true, "")
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(
			filepath.Join(cfg.Components, "roles.sql"), []byte("DROP ROLE all;"), 0o644))

		after, err := renderMigration(cfg, m, true, "")
		require.NoError(t, err)
		require.Equal(t, before, after)

		live, err := renderMigration(cfg, m, false, "")
		require.NoError(t, err)
		require.NotEqual(t, before, live)
	})
}
