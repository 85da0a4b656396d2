package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/config"
	"github.com/pseudomuto/anchor/pkg/consts"
	"github.com/pseudomuto/anchor/pkg/engine"
	"github.com/pseudomuto/anchor/pkg/project"
	"github.com/pseudomuto/anchor/pkg/render"
	"github.com/pseudomuto/anchor/pkg/source"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type testParams struct {
	fx.In

	Config *config.Config
}

// testCmd creates the test command group for working with SQL test fixtures:
// templated scripts under the tests directory whose engine output can be
// recorded and compared.
//
// Example usage:
//
//	# Render a fixture to stdout
//	anchor test build users_view
//
//	# Run it and record its output as the expectation
//	anchor test expect users_view
//
//	# Later: fail if the output has drifted
//	anchor test compare
func testCmd(p testParams) *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Build, run, and compare SQL test fixtures",
		Commands: []*cli.Command{
			testBuild(p),
			testRun(p),
			testExpect(p),
			testCompare(p),
		},
	}
}

func testBuild(p testParams) *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Render test fixtures to stdout",
		ArgsUsage: "[<name>]",
		Before:    requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return eachTest(cmd, p.Config, func(t *project.TestCase) error {
				sql, err := renderTest(p.Config, t)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.Writer, "-- %s\n", t.Name)
				_, err = cmd.Writer.Write(sql)
				return err
			})
		},
	}
}

func testRun(p testParams) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Render test fixtures and run them against the database",
		ArgsUsage: "[<name>]",
		Before:    requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return eachTest(cmd, p.Config, func(t *project.TestCase) error {
				output, err := runTest(ctx, p.Config, t)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.Writer, "-- %s\n%s\n", t.Name, output)
				return nil
			})
		},
	}
}

func testExpect(p testParams) *cli.Command {
	return &cli.Command{
		Name:      "expect",
		Usage:     "Run test fixtures and record their output as the expectation",
		ArgsUsage: "[<name>]",
		Before:    requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return eachTest(cmd, p.Config, func(t *project.TestCase) error {
				output, err := runTest(ctx, p.Config, t)
				if err != nil {
					return err
				}

				if err := os.WriteFile(t.ExpectedPath(), []byte(output), consts.ModeFile); err != nil {
					return errors.Wrapf(err, "failed to write %s", t.ExpectedPath())
				}

				fmt.Fprintf(cmd.Writer, "Recorded %s\n", t.ExpectedPath())
				return nil
			})
		},
	}
}

func testCompare(p testParams) *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "Run test fixtures and diff their output against expectations",
		ArgsUsage: "[<name>]",
		Before:    requireConfig(p.Config),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var failed int

			err := eachTest(cmd, p.Config, func(t *project.TestCase) error {
				expected, err := os.ReadFile(t.ExpectedPath())
				if err != nil {
					return errors.Wrapf(err, "no expectation recorded for %s (run `anchor test expect %s`)", t.Name, t.Name)
				}

				output, err := runTest(ctx, p.Config, t)
				if err != nil {
					return err
				}

				if output == string(bytes.TrimRight(expected, "\n")) {
					fmt.Fprintf(cmd.Writer, "✓ %s\n", t.Name)
					return nil
				}

				failed++
				dmp := diffmatchpatch.New()
				diffs := dmp.DiffMain(string(expected), output, false)
				fmt.Fprintf(cmd.Writer, "✗ %s\n%s\n", t.Name, dmp.DiffPrettyText(diffs))
				return nil
			})
			if err != nil {
				return err
			}

			if failed > 0 {
				return errors.Errorf("%d test(s) produced differences", failed)
			}
			return nil
		},
	}
}

// eachTest invokes fn for the named fixture, or for every fixture when no
// name argument was given.
func eachTest(cmd *cli.Command, cfg *config.Config, fn func(*project.TestCase) error) error {
	if name := cmd.Args().First(); name != "" {
		t, err := project.FindTest(cfg.Tests, name)
		if err != nil {
			return err
		}
		return fn(t)
	}

	tests, err := project.LoadTests(cfg.Tests)
	if err != nil {
		return err
	}

	for _, t := range tests {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func renderTest(cfg *config.Config, t *project.TestCase) ([]byte, error) {
	var buf bytes.Buffer
	src := source.NewLive(cfg.Components)
	if err := render.New(src).Render(&buf, t.ScriptPath(), map[string]any{}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func runTest(ctx context.Context, cfg *config.Config, t *project.TestCase) (string, error) {
	sql, err := renderTest(cfg, t)
	if err != nil {
		return "", err
	}

	url := cfg.DatabaseURL()
	if url == "" {
		return "", errors.New("no database url configured (set database.url or database.url_env in anchor.yaml)")
	}

	writer, err := engine.NewPsql(url).Script(ctx)
	if err != nil {
		return "", err
	}

	if _, err := writer.Write(sql); err != nil {
		output, ferr := writer.Finalize(ctx)
		if ferr != nil {
			return output, ferr
		}
		return output, err
	}

	return writer.Finalize(ctx)
}
