package migrate

import "fmt"

type (
	// AlreadyAppliedError indicates an adopt was rejected because a success
	// row already exists for the migration.
	AlreadyAppliedError struct {
		Info *Info
	}

	// PreviousAttemptError indicates an apply was refused because the ledger
	// shows a previous attempt that did not succeed. Silently retrying a
	// half-applied script is unsafe, so the engine stops here and leaves the
	// decision to an operator.
	PreviousAttemptError struct {
		Info *Info
	}

	// AdvisoryLockError indicates the per-namespace advisory lock could not
	// be acquired. Ledger state is untouched when this is returned.
	AdvisoryLockError struct {
		Namespace string
		Cause     error
	}

	// NotRecordedError indicates the SQL stream succeeded but the ledger
	// write confirming success failed. The database and the ledger have
	// diverged; this is fatal and requires operator reconciliation, never a
	// retry.
	NotRecordedError struct {
		Name      string
		Namespace string
		Cause     error
	}
)

func (e *AlreadyAppliedError) Error() string {
	return fmt.Sprintf("migration %s already applied in namespace %s at %s",
		e.Info.Name, e.Info.Namespace, e.Info.LastActivity.Format("2006-01-02 15:04:05"))
}

func (e *PreviousAttemptError) Error() string {
	return fmt.Sprintf("migration %s has a previous %s attempt in namespace %s; manual intervention required",
		e.Info.Name, e.Info.LastStatus, e.Info.Namespace)
}

func (e *AdvisoryLockError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to acquire advisory lock for namespace %s: %v", e.Namespace, e.Cause)
	}
	return fmt.Sprintf("advisory lock for namespace %s is held by another apply", e.Namespace)
}

func (e *AdvisoryLockError) Unwrap() error {
	return e.Cause
}

func (e *NotRecordedError) Error() string {
	return fmt.Sprintf("migration %s applied but recording success failed in namespace %s: %v; ledger and database have diverged",
		e.Name, e.Namespace, e.Cause)
}

func (e *NotRecordedError) Unwrap() error {
	return e.Cause
}
