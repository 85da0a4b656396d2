package telemetry

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pseudomuto/anchor/pkg/consts"
)

// DisableEnv disables telemetry entirely when set to any non-empty value.
const DisableEnv = "ANCHOR_NO_TELEMETRY"

type (
	// Recorder collects anonymous usage events as fire-and-forget background
	// work. Every command invocation records at most a handful of events;
	// each is written on a detached goroutine tracked by a single
	// pending-handle slot, and Flush waits for the slot with a bounded
	// timeout at shutdown. Failures are swallowed: telemetry never affects
	// a command's outcome or exit status.
	Recorder struct {
		runID string
		path  string

		mu      sync.Mutex
		pending chan struct{}
	}

	event struct {
		RunID   string         `json:"run_id"`
		Name    string         `json:"name"`
		Time    time.Time      `json:"time"`
		Details map[string]any `json:"details,omitempty"`
	}
)

// New creates a Recorder spooling events beneath dir. A nil Recorder is
// returned when telemetry is disabled via DisableEnv; all methods are safe
// to call on it.
func New(dir string) *Recorder {
	if os.Getenv(DisableEnv) != "" {
		return nil
	}

	return &Recorder{
		runID: uuid.NewString(),
		path:  filepath.Join(dir, "telemetry.log"),
	}
}

// Record captures one event in the background. A previous in-flight write is
// awaited first so the pending slot only ever holds one handle.
func (r *Recorder) Record(name string, details map[string]any) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		<-r.pending
	}

	done := make(chan struct{})
	r.pending = done

	go func() {
		defer close(done)
		r.write(event{
			RunID:   r.runID,
			Name:    name,
			Time:    time.Now().UTC(),
			Details: details,
		})
	}()
}

// Flush waits for any in-flight write, giving up after timeout. It is called
// best-effort at process exit and never on a correctness-critical path.
func (r *Recorder) Flush(timeout time.Duration) {
	if r == nil {
		return
	}

	r.mu.Lock()
	pending := r.pending
	r.mu.Unlock()

	if pending == nil {
		return
	}

	select {
	case <-pending:
	case <-time.After(timeout):
	}
}

func (r *Recorder) write(e event) {
	if err := os.MkdirAll(filepath.Dir(r.path), consts.ModeDir); err != nil {
		slog.Debug("telemetry write skipped", "err", err)
		return
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, consts.ModeFile)
	if err != nil {
		slog.Debug("telemetry write skipped", "err", err)
		return
	}
	defer func() { _ = f.Close() }()

	line, err := json.Marshal(e)
	if err != nil {
		return
	}

	_, _ = f.Write(append(line, '\n'))
}
