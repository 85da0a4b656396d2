// Package engine defines the streaming boundary to the database process that
// executes generated SQL, plus the psql subprocess implementation used in
// production. Everything above this boundary treats execution as "write a
// complete script, finalize, read the captured output"; process mechanics
// stay in here.
package engine
