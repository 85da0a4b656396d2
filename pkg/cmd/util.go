package cmd

import (
	"bytes"
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/config"
	"github.com/pseudomuto/anchor/pkg/engine"
	"github.com/pseudomuto/anchor/pkg/migrate"
	"github.com/pseudomuto/anchor/pkg/pin"
	"github.com/pseudomuto/anchor/pkg/project"
	"github.com/pseudomuto/anchor/pkg/render"
	"github.com/pseudomuto/anchor/pkg/source"
	"github.com/pseudomuto/anchor/pkg/vars"
)

// componentSource builds the component source for one migration: the live
// components directory, or the pinned snapshot recorded in the migration's
// lock file.
func componentSource(cfg *config.Config, m *project.Migration, pinned bool) (source.Source, error) {
	if !pinned {
		return source.NewLive(cfg.Components), nil
	}

	lock, err := pin.ReadLockFile(m.LockPath())
	if err != nil {
		return nil, errors.Wrapf(err, "migration %s is not pinned (run `anchor migration pin %s`)", m.Name, m.Name)
	}

	return source.NewPinned(pin.NewStore(cfg.Store), lock.Pin)
}

// renderMigration renders a migration's entry point script to bytes. An
// explicit varsFile overrides the migration's own variables file; with
// neither, the script renders against an empty variable scope.
func renderMigration(cfg *config.Config, m *project.Migration, pinned bool, varsFile string) ([]byte, error) {
	if varsFile == "" {
		varsFile = m.VarsPath()
	}

	values, err := loadValues(varsFile)
	if err != nil {
		return nil, err
	}

	src, err := componentSource(cfg, m, pinned)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := render.New(src).Render(&buf, m.ScriptPath(), values); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func loadValues(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}

	return vars.Load(path)
}

// openMigrator connects a dedicated ledger session to the configured
// database and wires up the psql engine. The returned func closes the
// session and must be called when the command finishes.
func openMigrator(ctx context.Context, cfg *config.Config) (*migrate.Migrator, func(), error) {
	url := cfg.DatabaseURL()
	if url == "" {
		return nil, nil, errors.New("no database url configured (set database.url or database.url_env in anchor.yaml)")
	}

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to database")
	}

	migrator := migrate.New(migrate.Config{
		Ledger:    migrate.NewLedger(conn),
		Engine:    engine.NewPsql(url),
		Namespace: cfg.Database.Namespace,
	})

	return migrator, func() { _ = conn.Close(context.Background()) }, nil
}
