package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/config"
	"github.com/pseudomuto/anchor/pkg/consts"
	"github.com/pseudomuto/anchor/pkg/migrate"
	"github.com/pseudomuto/anchor/pkg/pin"
	"github.com/pseudomuto/anchor/pkg/project"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type migrationParams struct {
	fx.In

	Config *config.Config
}

var pinnedFlag = &cli.BoolFlag{
	Name:  "pinned",
	Usage: "Resolve components from the migration's pinned snapshot instead of the live filesystem",
}

// migration creates the migration command group: scaffolding, pinning,
// building, and applying migrations.
//
// Example usage:
//
//	# Scaffold a new migration
//	anchor migration new create_users
//
//	# Pin its components, then build reproducibly
//	anchor migration pin 20240101120000_create_users
//	anchor migration build --pinned 20240101120000_create_users
//
//	# Apply one migration, or everything pending
//	anchor migration apply 20240101120000_create_users
//	anchor migration apply
func migration(p migrationParams) *cli.Command {
	return &cli.Command{
		Name:  "migration",
		Usage: "Manage templated SQL migrations",
		Commands: []*cli.Command{
			migrationNew(p),
			migrationPin(p),
			migrationBuild(p),
			migrationApply(p),
			migrationAdopt(p),
			migrationStatus(p),
		},
	}
}

func migrationNew(p migrationParams) *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Scaffold a new migration directory",
		ArgsUsage: "<name>",
		Before:    requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return errors.New("migration name is required")
			}

			m, err := project.CreateMigration(p.Config.Migrations, name)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.Writer, "Created %s\n", m.Dir)
			return nil
		},
	}
}

func migrationPin(p migrationParams) *cli.Command {
	return &cli.Command{
		Name:      "pin",
		Usage:     "Snapshot the components directory and pin a migration to it",
		ArgsUsage: "<migration>",
		Description: `Snapshot the current state of the components directory into the
content-addressed object store and record the resulting root hash in the
migration's ` + consts.LockFile + `. Building or applying with --pinned then renders
against that exact component state forever, regardless of later edits.

Re-running pin replaces the previous lock file.`,
		Before: requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := findMigrationArg(cmd, p.Config)
			if err != nil {
				return err
			}

			store := pin.NewStore(p.Config.Store)
			root, err := pin.Snapshot(store, p.Config.Components)
			if err != nil {
				return errors.Wrap(err, "failed to snapshot components")
			}

			if err := pin.WriteLockFile(m.LockPath(), root); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Writer, "Pinned %s to %s\n", m.Name, root)
			return nil
		},
	}
}

func migrationBuild(p migrationParams) *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Render a migration to SQL",
		ArgsUsage: "<migration> [variables-file]",
		Before:    requireConfig(p.Config),
		Flags: []cli.Flag{
			pinnedFlag,
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Write rendered SQL to a file instead of stdout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := findMigrationArg(cmd, p.Config)
			if err != nil {
				return err
			}

			sql, err := renderMigration(p.Config, m, cmd.Bool("pinned"), cmd.Args().Get(1))
			if err != nil {
				return err
			}

			if out := cmd.String("out"); out != "" {
				return errors.Wrapf(os.WriteFile(out, sql, consts.ModeFile), "failed to write %s", out)
			}

			_, err = cmd.Writer.Write(sql)
			return err
		},
	}
}

func migrationApply(p migrationParams) *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Render migrations and apply them to the database",
		ArgsUsage: "[<migration>] [variables-file]",
		Description: `Render one migration (or, with no name, every migration in lexicographic
order) and stream the SQL to the configured database.

Every migration is rendered up front, so a template failure aborts the run
before any SQL reaches the database. Migrations already recorded as applied
are skipped; a migration whose previous attempt did not succeed refuses to
re-apply and requires manual intervention.`,
		Before: requireConfig(p.Config),
		Flags:  []cli.Flag{pinnedFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			pinned := cmd.Bool("pinned")

			var scripts []migrate.Script
			if name := cmd.Args().First(); name != "" {
				m, err := project.FindMigration(p.Config.Migrations, name)
				if err != nil {
					return err
				}

				sql, err := renderMigration(p.Config, m, pinned, cmd.Args().Get(1))
				if err != nil {
					return err
				}
				scripts = append(scripts, migrate.Script{Name: m.Name, SQL: sql})
			} else {
				migrations, err := project.LoadMigrations(p.Config.Migrations)
				if err != nil {
					return err
				}

				for _, m := range migrations {
					sql, err := renderMigration(p.Config, m, pinned, "")
					if err != nil {
						return errors.Wrapf(err, "failed to render migration %s", m.Name)
					}
					scripts = append(scripts, migrate.Script{Name: m.Name, SQL: sql})
				}
			}

			migrator, closeConn, err := openMigrator(ctx, p.Config)
			if err != nil {
				return err
			}
			defer closeConn()

			results, err := migrator.ApplyAll(ctx, scripts)
			for _, result := range results {
				if result.Skipped {
					fmt.Fprintf(cmd.Writer, "- %s already applied\n", result.Name)
					continue
				}
				fmt.Fprintf(cmd.Writer, "✓ %s applied\n", result.Name)
			}

			return err
		},
	}
}

func migrationAdopt(p migrationParams) *cli.Command {
	return &cli.Command{
		Name:      "adopt",
		Usage:     "Record a migration as applied without executing any SQL",
		ArgsUsage: "<migration>",
		Description: `Register a migration that was already applied out-of-band. The migration is
rendered only to compute its checksum; nothing is executed. Adoption is
rejected if the ledger already records a successful apply.`,
		Before: requireConfig(p.Config),
		Flags:  []cli.Flag{pinnedFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, err := findMigrationArg(cmd, p.Config)
			if err != nil {
				return err
			}

			sql, err := renderMigration(p.Config, m, cmd.Bool("pinned"), "")
			if err != nil {
				return err
			}

			migrator, closeConn, err := openMigrator(ctx, p.Config)
			if err != nil {
				return err
			}
			defer closeConn()

			if err := migrator.Adopt(ctx, m.Name, sql); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Writer, "✓ %s adopted\n", m.Name)
			return nil
		},
	}
}

func migrationStatus(p migrationParams) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show migration ledger status",
		Before: requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			migrator, closeConn, err := openMigrator(ctx, p.Config)
			if err != nil {
				return err
			}
			defer closeConn()

			infos, err := migrator.Status(ctx)
			if err != nil {
				return err
			}

			if len(infos) == 0 {
				fmt.Fprintln(cmd.Writer, "No migrations recorded")
				return nil
			}

			for _, info := range infos {
				fmt.Fprintf(cmd.Writer, "%-50s %-10s %s\n",
					info.Name, info.LastStatus, info.LastActivity.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func findMigrationArg(cmd *cli.Command, cfg *config.Config) (*project.Migration, error) {
	name := cmd.Args().First()
	if name == "" {
		return nil, errors.New("migration name is required")
	}

	return project.FindMigration(cfg.Migrations, name)
}
