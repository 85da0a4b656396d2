// Package migrate applies rendered SQL to a target PostgreSQL database and
// tracks what has been applied.
//
// History lives in the target database itself (anchor.migrations), one row
// per (name, namespace) recording the last status, activity time, and the
// checksum of the rendered SQL. The Migrator enforces the state machine on
// top of that ledger: a migration is streamed to the engine at most once
// successfully, re-applying a success is a reported no-op, and anything in a
// non-success state refuses to proceed without an operator. A per-namespace
// advisory lock serializes concurrent apply attempts.
//
// Nothing in this package retries automatically. Duplicate-apply protection
// and the advisory lock exist precisely so that a retry is an explicit,
// informed operator action.
package migrate
