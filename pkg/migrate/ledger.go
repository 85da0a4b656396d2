package migrate

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// Migration statuses recorded in the ledger.
const (
	// StatusSuccess marks a migration whose SQL ran to completion.
	StatusSuccess Status = "success"

	// StatusAttempted marks a migration whose apply started but has not
	// reached a terminal state. Seeing it on a later apply means a previous
	// run was interrupted mid-stream.
	StatusAttempted Status = "attempted"

	// StatusFailure marks a migration whose SQL failed.
	StatusFailure Status = "failure"
)

type (
	// Status is the last recorded state of a migration in the ledger.
	Status string

	// Info is one row of migration-history state: everything an operator
	// needs to decide what to do with a migration that cannot be applied
	// automatically.
	Info struct {
		Name         string
		Namespace    string
		LastStatus   Status
		LastActivity time.Time
		Checksum     string
	}

	// DB is the database session used for ledger reads and writes. It is
	// satisfied by *pgx.Conn. Advisory locks are session-scoped, so the
	// ledger must hold a single connection rather than a pool.
	DB interface {
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	}

	// Ledger persists migration history in the target database itself, under
	// the anchor schema. It also mediates the advisory lock that serializes
	// apply attempts per namespace.
	Ledger struct {
		db DB
	}
)

// NewLedger creates a Ledger over an open database session.
func NewLedger(db DB) *Ledger {
	return &Ledger{db: db}
}

// Bootstrap creates the anchor schema and migrations table if they do not
// exist. It is idempotent and called before every apply.
func (l *Ledger) Bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS anchor`,
		`CREATE TABLE IF NOT EXISTS anchor.migrations (
			name          text        NOT NULL,
			namespace     text        NOT NULL,
			last_status   text        NOT NULL,
			last_activity timestamptz NOT NULL,
			checksum      text        NOT NULL,
			PRIMARY KEY (name, namespace)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := l.db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to bootstrap migration ledger")
		}
	}

	return nil
}

// Fetch returns the ledger row for (name, namespace), or nil if the
// migration has never been attempted.
func (l *Ledger) Fetch(ctx context.Context, name, namespace string) (*Info, error) {
	row := l.db.QueryRow(ctx, `
		SELECT name, namespace, last_status, last_activity, checksum
		FROM anchor.migrations
		WHERE name = $1 AND namespace = $2
	`, name, namespace)

	info := &Info{}
	var status string
	err := row.Scan(&info.Name, &info.Namespace, &status, &info.LastActivity, &info.Checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch ledger row for %s", name)
	}

	info.LastStatus = Status(status)
	return info, nil
}

// Record upserts the ledger row for (name, namespace), stamping the activity
// time.
func (l *Ledger) Record(ctx context.Context, name, namespace string, status Status, checksum string) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO anchor.migrations (name, namespace, last_status, last_activity, checksum)
		VALUES ($1, $2, $3, now(), $4)
		ON CONFLICT (name, namespace) DO UPDATE
		SET last_status = EXCLUDED.last_status,
		    last_activity = EXCLUDED.last_activity,
		    checksum = EXCLUDED.checksum
	`, name, namespace, string(status), checksum)
	if err != nil {
		return errors.Wrapf(err, "failed to record %s status for %s", status, name)
	}

	return nil
}

// List returns all ledger rows in a namespace ordered by name.
func (l *Ledger) List(ctx context.Context, namespace string) ([]*Info, error) {
	rows, err := l.db.Query(ctx, `
		SELECT name, namespace, last_status, last_activity, checksum
		FROM anchor.migrations
		WHERE namespace = $1
		ORDER BY name ASC
	`, namespace)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ledger rows")
	}
	defer rows.Close()

	var infos []*Info
	for rows.Next() {
		info := &Info{}
		var status string
		if err := rows.Scan(&info.Name, &info.Namespace, &status, &info.LastActivity, &info.Checksum); err != nil {
			return nil, errors.Wrap(err, "failed to scan ledger row")
		}
		info.LastStatus = Status(status)
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// TryLock attempts to take the session-level advisory lock for a namespace.
// It returns false when another session holds the lock.
func (l *Ledger) TryLock(ctx context.Context, namespace string) (bool, error) {
	var locked bool
	err := l.db.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockKey(namespace)).Scan(&locked)
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire advisory lock for namespace %s", namespace)
	}

	return locked, nil
}

// Unlock releases the advisory lock for a namespace.
func (l *Ledger) Unlock(ctx context.Context, namespace string) error {
	var released bool
	err := l.db.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, lockKey(namespace)).Scan(&released)
	if err != nil {
		return errors.Wrapf(err, "failed to release advisory lock for namespace %s", namespace)
	}

	return nil
}

// lockKey derives a stable 64-bit advisory lock key from a namespace name.
func lockKey(namespace string) int64 {
	return int64(xxh3.HashString("anchor:" + namespace))
}
