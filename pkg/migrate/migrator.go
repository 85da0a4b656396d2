package migrate

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pkg/errors"
	"github.com/pseudomuto/anchor/pkg/engine"
	"github.com/pseudomuto/anchor/pkg/pin"
)

type (
	// Migrator applies rendered SQL against a target database while keeping
	// the migration ledger consistent. Each (name, namespace) pair moves
	// through a small state machine: unknown -> attempted -> success or
	// failure. Success is terminal and idempotent to re-apply; attempted and
	// failure are terminal for the machine and require an operator.
	//
	// Example usage:
	//
	//	conn, _ := pgx.Connect(ctx, url)
	//	m := migrate.New(migrate.Config{
	//		Ledger:    migrate.NewLedger(conn),
	//		Engine:    engine.NewPsql(url),
	//		Namespace: "default",
	//	})
	//
	//	result, err := m.Apply(ctx, "20240101120000_create_users", sql)
	Migrator struct {
		ledger    History
		engine    engine.Engine
		namespace string
	}

	// History is the ledger surface the state machine needs. It is satisfied
	// by *Ledger; tests substitute in-memory implementations.
	History interface {
		Bootstrap(ctx context.Context) error
		Fetch(ctx context.Context, name, namespace string) (*Info, error)
		Record(ctx context.Context, name, namespace string, status Status, checksum string) error
		List(ctx context.Context, namespace string) ([]*Info, error)
		TryLock(ctx context.Context, namespace string) (bool, error)
		Unlock(ctx context.Context, namespace string) error
	}

	// Config contains the collaborators for a Migrator.
	Config struct {
		// Ledger tracks migration history in the target database.
		Ledger History

		// Engine executes rendered SQL scripts.
		Engine engine.Engine

		// Namespace scopes ledger rows and the advisory lock.
		Namespace string
	}

	// Script pairs a migration name with its fully rendered SQL.
	Script struct {
		Name string
		SQL  []byte
	}

	// Result describes the outcome of a single apply.
	Result struct {
		// Name is the migration that was applied.
		Name string

		// Skipped is true when the ledger already recorded success and no
		// SQL was executed.
		Skipped bool

		// Info is the existing ledger row for skipped migrations.
		Info *Info

		// Output is the captured engine output for executed migrations.
		Output string
	}
)

// New creates a Migrator from its collaborators.
func New(cfg Config) *Migrator {
	return &Migrator{
		ledger:    cfg.Ledger,
		engine:    cfg.Engine,
		namespace: cfg.Namespace,
	}
}

// Apply runs one migration's rendered SQL, enforcing at-most-one-successful
// apply semantics:
//
//   - Unknown migrations are applied under the namespace advisory lock, with
//     an attempted row written before any SQL is streamed. The ledger check
//     is repeated once the lock is held, so a concurrent apply that finished
//     first turns this one into a skip rather than a second execution.
//   - Migrations already recorded as success are skipped without error and
//     without executing anything. This is the idempotent-retry guarantee
//     batch applies rely on.
//   - Migrations with a previous attempted or failure row are refused with
//     PreviousAttemptError.
//
// If the SQL stream succeeds but the ledger write confirming success fails,
// Apply returns NotRecordedError; the database and ledger have diverged and
// an operator must reconcile them.
func (m *Migrator) Apply(ctx context.Context, name string, sql []byte) (*Result, error) {
	if err := m.ledger.Bootstrap(ctx); err != nil {
		return nil, err
	}

	if result, err := m.recorded(ctx, name); result != nil || err != nil {
		return result, err
	}

	locked, err := m.ledger.TryLock(ctx, m.namespace)
	if err != nil {
		return nil, &AdvisoryLockError{Namespace: m.namespace, Cause: err}
	}
	if !locked {
		return nil, &AdvisoryLockError{Namespace: m.namespace}
	}
	defer func() {
		// Release on every exit path; a leaked lock would deadlock all
		// subsequent applies in this namespace.
		if err := m.ledger.Unlock(ctx, m.namespace); err != nil {
			slog.Debug("failed to release advisory lock", "namespace", m.namespace, "err", err)
		}
	}()

	// Recheck now that the lock is held: a concurrent apply may have
	// finished this migration between the fetch and the lock.
	if result, err := m.recorded(ctx, name); result != nil || err != nil {
		return result, err
	}

	checksum := pin.HashBytes(sql)
	if err := m.ledger.Record(ctx, name, m.namespace, StatusAttempted, checksum); err != nil {
		return nil, err
	}

	output, err := m.stream(ctx, sql)
	if err != nil {
		if rerr := m.ledger.Record(ctx, name, m.namespace, StatusFailure, checksum); rerr != nil {
			slog.Debug("failed to record failure", "migration", name, "err", rerr)
		}
		return nil, errors.Wrapf(err, "failed to apply migration %s", name)
	}

	if err := m.ledger.Record(ctx, name, m.namespace, StatusSuccess, checksum); err != nil {
		return nil, &NotRecordedError{Name: name, Namespace: m.namespace, Cause: err}
	}

	return &Result{Name: name, Output: output}, nil
}

// recorded resolves a migration's existing ledger row: a skip Result when it
// already succeeded, PreviousAttemptError when it is in a non-success state,
// and (nil, nil) when the migration is unknown and may proceed.
func (m *Migrator) recorded(ctx context.Context, name string) (*Result, error) {
	info, err := m.ledger.Fetch(ctx, name, m.namespace)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	if info.LastStatus == StatusSuccess {
		return &Result{Name: name, Skipped: true, Info: info}, nil
	}
	return nil, &PreviousAttemptError{Info: info}
}

// Adopt records a migration as successfully applied without executing any
// SQL, for migrations that were applied out-of-band. It fails with
// AlreadyAppliedError when a success row already exists.
func (m *Migrator) Adopt(ctx context.Context, name string, sql []byte) error {
	if err := m.ledger.Bootstrap(ctx); err != nil {
		return err
	}

	info, err := m.ledger.Fetch(ctx, name, m.namespace)
	if err != nil {
		return err
	}
	if info != nil && info.LastStatus == StatusSuccess {
		return &AlreadyAppliedError{Info: info}
	}

	return m.ledger.Record(ctx, name, m.namespace, StatusSuccess, pin.HashBytes(sql))
}

// ApplyAll applies a batch of migrations in lexicographic name order,
// aborting on the first failure. Migrations already recorded as success are
// skipped and included in the results with Skipped set. Results for
// migrations processed before a failure are returned alongside the error.
func (m *Migrator) ApplyAll(ctx context.Context, scripts []Script) ([]*Result, error) {
	ordered := make([]Script, len(scripts))
	copy(ordered, scripts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	results := make([]*Result, 0, len(ordered))
	for _, script := range ordered {
		result, err := m.Apply(ctx, script.Name, script.SQL)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// Status returns the ledger rows for the migrator's namespace ordered by
// name.
func (m *Migrator) Status(ctx context.Context) ([]*Info, error) {
	if err := m.ledger.Bootstrap(ctx); err != nil {
		return nil, err
	}

	return m.ledger.List(ctx, m.namespace)
}

func (m *Migrator) stream(ctx context.Context, sql []byte) (string, error) {
	writer, err := m.engine.Script(ctx)
	if err != nil {
		return "", err
	}

	if _, err := writer.Write(sql); err != nil {
		// Finalize regardless so the process is reaped; its error is the
		// interesting one when the write broke mid-stream.
		output, ferr := writer.Finalize(ctx)
		if ferr != nil {
			return output, ferr
		}
		return output, err
	}

	return writer.Finalize(ctx)
}
