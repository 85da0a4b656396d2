package engine

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

type (
	// Engine is the boundary to the process that executes SQL. A Script is a
	// writable byte sink for one complete SQL script; Finalize flushes it,
	// waits for execution, and returns whatever output the engine captured.
	// Errors from the underlying process surface as opaque engine-layer
	// failures.
	Engine interface {
		Script(ctx context.Context) (ScriptWriter, error)
	}

	// ScriptWriter accepts a SQL script as a stream of writes. Callers must
	// call Finalize exactly once; it reports success or failure of the whole
	// script.
	ScriptWriter interface {
		io.Writer

		Finalize(ctx context.Context) (output string, err error)
	}

	// Psql executes scripts by streaming them to the stdin of a psql
	// subprocess. ON_ERROR_STOP makes any failed statement fail the whole
	// run with a non-zero exit.
	Psql struct {
		url  string
		args []string
	}

	psqlScript struct {
		cmd    *exec.Cmd
		stdin  io.WriteCloser
		output *bytes.Buffer
	}
)

// NewPsql creates an Engine that pipes scripts to `psql <url>`. Extra
// arguments are appended to the command line verbatim.
func NewPsql(url string, args ...string) *Psql {
	return &Psql{url: url, args: args}
}

// Script starts a psql process and returns a writer connected to its stdin.
// The process runs as the script streams in; Finalize closes stdin and waits
// for it to exit.
func (p *Psql) Script(ctx context.Context) (ScriptWriter, error) {
	args := append([]string{
		"--no-psqlrc",
		"--quiet",
		"--set", "ON_ERROR_STOP=1",
	}, p.args...)
	args = append(args, p.url)

	cmd := exec.CommandContext(ctx, "psql", args...)

	output := new(bytes.Buffer)
	cmd.Stdout = output
	cmd.Stderr = output

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open psql stdin")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start psql")
	}

	return &psqlScript{cmd: cmd, stdin: stdin, output: output}, nil
}

func (s *psqlScript) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *psqlScript) Finalize(_ context.Context) (string, error) {
	if err := s.stdin.Close(); err != nil {
		_ = s.cmd.Wait()
		return s.out(), errors.Wrap(err, "failed to close psql stdin")
	}

	if err := s.cmd.Wait(); err != nil {
		return s.out(), errors.Wrapf(err, "psql failed: %s", s.out())
	}

	return s.out(), nil
}

func (s *psqlScript) out() string {
	return strings.TrimSpace(s.output.String())
}
