package telemetry_test

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	. "github.com/pseudomuto/anchor/pkg/telemetry"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Run("records events as JSON lines", func(t *testing.T) {
		dir := t.TempDir()
		r := New(dir)
		require.NotNil(t, r)

		r.Record("migration apply", map[string]any{"count": 2})
		r.Record("migration status", nil)
		r.Flush(time.Second)

		f, err := os.Open(filepath.Join(dir, "telemetry.log"))
		require.NoError(t, err)
		defer f.Close()

		var lines []map[string]any
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var e map[string]any
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
			lines = append(lines, e)
		}
		require.NoError(t, scanner.Err())

		require.Len(t, lines, 2)
		require.Equal(t, "migration apply", lines[0]["name"])
		require.Equal(t, "migration status", lines[1]["name"])
		require.Equal(t, lines[0]["run_id"], lines[1]["run_id"], "events in one run share a run id")
		require.NotEmpty(t, lines[0]["run_id"])
	})

	t.Run("is disabled via the environment", func(t *testing.T) {
		t.Setenv(DisableEnv, "1")
		require.Nil(t, New(t.TempDir()))
	})

	t.Run("is safe to use when disabled", func(t *testing.T) {
		var r *Recorder
		r.Record("noop", nil)
		r.Flush(time.Second)
	})

	t.Run("Flush returns promptly with nothing in flight", func(t *testing.T) {
		start := time.Now()
		New(t.TempDir()).Flush(time.Second)
		require.Less(t, time.Since(start), time.Second)
	})
}
