package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/config"
	"github.com/pseudomuto/anchor/pkg/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Shutdowner fx.Shutdowner
		Telemetry  *telemetry.Recorder
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run creates and executes the main anchor CLI application with the given
// version and command-line arguments. This function serves as the main entry
// point for all CLI operations and handles global configuration.
//
// The application is rooted at a project directory (--dir, defaulting to the
// current directory) containing an anchor.yaml; commands that operate on a
// project validate its presence themselves via requireConfig.
//
// Example usage:
//
//	# Run in current directory
//	anchor migration build 20240101120000_create_users
//
//	# Run in a specific project directory
//	anchor --dir /path/to/project migration apply
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := &cli.Command{
		Name:  "anchor",
		Usage: "Build and apply templated SQL migrations with pinned components",
		Description: `anchor renders PostgreSQL migrations from templated scripts whose reusable
fragments ("components") can be pinned to immutable, content-addressed
snapshots. A migration built against pinned components renders byte-identical
SQL no matter how the live component files change afterwards.`,
		Version: p.Version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "the project directory",
				Value:       ".",
				DefaultText: "Current directory",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := os.Chdir(cmd.String("dir")); err != nil {
				return ctx, err
			}

			if len(cmd.Args().Slice()) > 0 {
				p.Telemetry.Record("command", map[string]any{"name": cmd.Args().First()})
			}
			return ctx, nil
		},
		Commands: p.Commands,
	}

	p.Lifecycle.Append(fx.StartHook(func() {
		if err := app.Run(p.Ctx, p.Args); err != nil {
			slog.Error("Error running command", "err", err)
			_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
			return
		}

		_ = p.Shutdowner.Shutdown(fx.ExitCode(0))
	}))
}

func requireConfig(cfg *config.Config) func(context.Context, *cli.Command) (context.Context, error) {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if cfg == nil {
			return ctx, errors.New("anchor.yaml not found")
		}

		return ctx, nil
	}
}
