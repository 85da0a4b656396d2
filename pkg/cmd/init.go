package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/consts"
	"github.com/pseudomuto/anchor/pkg/project"
	"github.com/urfave/cli/v3"
)

// initCmd creates the init command for scaffolding a new anchor project.
//
// Example usage:
//
//	# Initialize in the current directory
//	anchor init
func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new anchor project",
		Description: `Create the standard project layout in the current directory:

  anchor.yaml      project configuration
  db/components/   reusable SQL template fragments
  db/migrations/   one directory per migration
  db/tests/        SQL test fixtures

Initialization is idempotent; existing files are never overwritten.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			pwd, err := os.Getwd()
			if err != nil {
				return errors.Wrap(err, "failed to get current working directory")
			}

			if err := project.New(pwd).Initialize(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Writer, "Initialized anchor project in %s (see %s)\n", pwd, consts.ConfigFile)
			return nil
		},
	}
}
