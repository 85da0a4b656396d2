package main

import (
	"context"
	"os"

	"github.com/pseudomuto/anchor/pkg/cmd"
	"github.com/pseudomuto/anchor/pkg/config"
	"github.com/pseudomuto/anchor/pkg/telemetry"
	"go.uber.org/fx"
)

// NB: These are set by GoReleaser during a build.
var (
	version string
	commit  string
	date    string
)

func main() {
	fx.New(
		fx.NopLogger,
		fx.Provide(
			func() context.Context { return context.Background() },
			func() []string { return os.Args },
			func() *cmd.Version {
				return &cmd.Version{Version: version, Commit: commit, Timestamp: date}
			},
		),
		config.Module,
		telemetry.Module,
		cmd.Module,
	).Run()
}
