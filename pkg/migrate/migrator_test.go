package migrate_test

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/engine"
	. "github.com/pseudomuto/anchor/pkg/migrate"
	"github.com/pseudomuto/anchor/pkg/pin"
	"github.com/stretchr/testify/require"
)

type (
	fakeHistory struct {
		rows     map[string]*Info
		locked   bool
		lockBusy bool

		fetchErr     error
		recordErr    map[Status]error
		lockErr      error
		onTryLock    func()
		bootstrapped int
	}

	fakeEngine struct {
		executed [][]byte
		fail     error
		output   string
	}

	fakeScript struct {
		engine *fakeEngine
		buf    bytes.Buffer
	}
)

func newFakeHistory() *fakeHistory {
	return &fakeHistory{rows: make(map[string]*Info), recordErr: make(map[Status]error)}
}

func (h *fakeHistory) Bootstrap(context.Context) error {
	h.bootstrapped++
	return nil
}

func (h *fakeHistory) Fetch(_ context.Context, name, namespace string) (*Info, error) {
	if h.fetchErr != nil {
		return nil, h.fetchErr
	}
	return h.rows[namespace+"/"+name], nil
}

func (h *fakeHistory) Record(_ context.Context, name, namespace string, status Status, checksum string) error {
	if err := h.recordErr[status]; err != nil {
		return err
	}

	h.rows[namespace+"/"+name] = &Info{
		Name:       name,
		Namespace:  namespace,
		LastStatus: status,
		Checksum:   checksum,
	}
	return nil
}

func (h *fakeHistory) List(_ context.Context, namespace string) ([]*Info, error) {
	infos := make([]*Info, 0, len(h.rows))
	for _, info := range h.rows {
		if info.Namespace == namespace {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (h *fakeHistory) TryLock(context.Context, string) (bool, error) {
	if h.onTryLock != nil {
		fn := h.onTryLock
		h.onTryLock = nil
		fn()
	}
	if h.lockErr != nil {
		return false, h.lockErr
	}
	if h.lockBusy {
		return false, nil
	}
	h.locked = true
	return true, nil
}

func (h *fakeHistory) Unlock(context.Context, string) error {
	h.locked = false
	return nil
}

func (e *fakeEngine) Script(context.Context) (engine.ScriptWriter, error) {
	return &fakeScript{engine: e}, nil
}

func (s *fakeScript) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

func (s *fakeScript) Finalize(context.Context) (string, error) {
	if s.engine.fail != nil {
		return "", s.engine.fail
	}

	s.engine.executed = append(s.engine.executed, s.buf.Bytes())
	return s.engine.output, nil
}

func newMigrator(h History, e engine.Engine) *Migrator {
	return New(Config{Ledger: h, Engine: e, Namespace: "default"})
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	sql := []byte("CREATE TABLE users ();")

	t.Run("applies unknown migrations and records success", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{output: "CREATE TABLE"}
		result, err := newMigrator(h, e).Apply(ctx, "001_users", sql)

		require.NoError(t, err)
		require.False(t, result.Skipped)
		require.Equal(t, "CREATE TABLE", result.Output)
		require.Equal(t, [][]byte{sql}, e.executed)

		info := h.rows["default/001_users"]
		require.Equal(t, StatusSuccess, info.LastStatus)
		require.Equal(t, pin.HashBytes(sql), info.Checksum)
		require.False(t, h.locked)
	})

	t.Run("skips migrations already recorded as success", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		m := newMigrator(h, e)

		_, err := m.Apply(ctx, "001_users", sql)
		require.NoError(t, err)

		result, err := m.Apply(ctx, "001_users", sql)
		require.NoError(t, err)
		require.True(t, result.Skipped)
		require.NotNil(t, result.Info)
		require.Len(t, e.executed, 1)
	})

	t.Run("refuses migrations with a non-success history", func(t *testing.T) {
		for _, status := range []Status{StatusAttempted, StatusFailure} {
			h, e := newFakeHistory(), &fakeEngine{}
			require.NoError(t, h.Record(ctx, "001_users", "default", status, "abc"))

			var pae *PreviousAttemptError
			_, err := newMigrator(h, e).Apply(ctx, "001_users", sql)
			require.True(t, errors.As(err, &pae), "status %s", status)
			require.Equal(t, status, pae.Info.LastStatus)
			require.Empty(t, e.executed)
		}
	})

	t.Run("fails without touching the ledger when the lock is held", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		h.lockBusy = true

		var lerr *AdvisoryLockError
		_, err := newMigrator(h, e).Apply(ctx, "001_users", sql)
		require.True(t, errors.As(err, &lerr))
		require.Equal(t, "default", lerr.Namespace)
		require.Empty(t, h.rows)
		require.Empty(t, e.executed)
	})

	t.Run("records failure when the SQL stream fails", func(t *testing.T) {
		h := newFakeHistory()
		e := &fakeEngine{fail: errors.New("syntax error at or near")}

		_, err := newMigrator(h, e).Apply(ctx, "001_users", sql)
		require.Error(t, err)
		require.Equal(t, StatusFailure, h.rows["default/001_users"].LastStatus)
		require.False(t, h.locked)
	})

	t.Run("skips when a rival apply finishes before the lock is acquired", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		m := newMigrator(h, e)

		// A second session completes the same migration in the window
		// between the status check and the lock acquisition.
		h.onTryLock = func() {
			_, err := m.Apply(ctx, "001_users", sql)
			require.NoError(t, err)
		}

		result, err := m.Apply(ctx, "001_users", sql)
		require.NoError(t, err)
		require.True(t, result.Skipped)
		require.Len(t, e.executed, 1, "migration SQL must execute exactly once")
		require.Equal(t, StatusSuccess, h.rows["default/001_users"].LastStatus)
	})

	t.Run("reports divergence when success cannot be recorded", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		h.recordErr[StatusSuccess] = errors.New("connection reset")

		var nre *NotRecordedError
		_, err := newMigrator(h, e).Apply(ctx, "001_users", sql)
		require.True(t, errors.As(err, &nre))
		require.Equal(t, "001_users", nre.Name)
		require.Len(t, e.executed, 1)
	})
}

func TestAdopt(t *testing.T) {
	ctx := context.Background()
	sql := []byte("CREATE TABLE users ();")

	t.Run("records success without executing SQL", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		require.NoError(t, newMigrator(h, e).Adopt(ctx, "001_users", sql))

		info := h.rows["default/001_users"]
		require.Equal(t, StatusSuccess, info.LastStatus)
		require.Equal(t, pin.HashBytes(sql), info.Checksum)
		require.Empty(t, e.executed)
	})

	t.Run("overwrites non-success rows", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		require.NoError(t, h.Record(ctx, "001_users", "default", StatusFailure, "abc"))

		require.NoError(t, newMigrator(h, e).Adopt(ctx, "001_users", sql))
		require.Equal(t, StatusSuccess, h.rows["default/001_users"].LastStatus)
	})

	t.Run("refuses already-applied migrations", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		m := newMigrator(h, e)
		require.NoError(t, m.Adopt(ctx, "001_users", sql))

		var aae *AlreadyAppliedError
		require.True(t, errors.As(m.Adopt(ctx, "001_users", sql), &aae))
	})
}

func TestApplyAll(t *testing.T) {
	ctx := context.Background()

	t.Run("applies in lexicographic order", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		results, err := newMigrator(h, e).ApplyAll(ctx, []Script{
			{Name: "002_roles", SQL: []byte("b")},
			{Name: "001_users", SQL: []byte("a")},
			{Name: "003_grants", SQL: []byte("c")},
		})

		require.NoError(t, err)
		require.Len(t, results, 3)
		require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, e.executed)
	})

	t.Run("skips applied migrations and aborts on failure", func(t *testing.T) {
		h, e := newFakeHistory(), &fakeEngine{}
		m := newMigrator(h, e)

		_, err := m.Apply(ctx, "001_users", []byte("a"))
		require.NoError(t, err)

		e.fail = errors.New("boom")
		results, err := m.ApplyAll(ctx, []Script{
			{Name: "001_users", SQL: []byte("a")},
			{Name: "002_roles", SQL: []byte("b")},
			{Name: "003_grants", SQL: []byte("c")},
		})

		require.Error(t, err)
		require.Len(t, results, 1)
		require.True(t, results[0].Skipped)
		require.Equal(t, StatusFailure, h.rows["default/002_roles"].LastStatus)
		require.NotContains(t, h.rows, "default/003_grants")
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	h, e := newFakeHistory(), &fakeEngine{}
	m := newMigrator(h, e)

	_, err := m.Apply(ctx, "002_roles", []byte("b"))
	require.NoError(t, err)
	_, err = m.Apply(ctx, "001_users", []byte("a"))
	require.NoError(t, err)

	infos, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "001_users", infos[0].Name)
	require.Equal(t, "002_roles", infos[1].Name)
}
