package sqlsafe

import (
	"fmt"
	"strings"
)

type (
	// Safe is the capability required to place a value into constructed SQL.
	// The interface is sealed: only Identifier, Literal, and Raw satisfy it,
	// so Queryf rejects a naked string at compile time rather than at
	// runtime. This is the construction-time guarantee that no unescaped
	// value reaches generated SQL.
	Safe interface {
		fmt.Stringer

		sqlSafe()
	}

	// Identifier is a schema, table, or column name. Its rendered form is
	// double-quoted with embedded double quotes doubled.
	Identifier string

	// Literal is a data value. Its rendered form is single-quoted with
	// embedded single quotes doubled, switching to the escape-aware E''
	// form when the value contains backslashes.
	Literal string

	// Raw is an explicitly unescaped SQL fragment. It is the single
	// sanctioned escaping bypass, intended for trusted static keywords and
	// renderer-produced output only. Never construct one from user input.
	Raw string
)

func (Identifier) sqlSafe() {}
func (Literal) sqlSafe()    {}
func (Raw) sqlSafe()        {}

// String renders the identifier quoted for PostgreSQL.
func (i Identifier) String() string {
	return `"` + strings.ReplaceAll(string(i), `"`, `""`) + `"`
}

// String renders the literal quoted and escaped for PostgreSQL.
func (l Literal) String() string {
	return escapeLiteral(string(l))
}

// String returns the fragment verbatim.
func (r Raw) String() string {
	return string(r)
}

// escapeLiteral renders s as a PostgreSQL string literal. The plain '' form
// is used unless the value contains backslashes, in which case the E''
// escape-string form is used with backslashes doubled.
func escapeLiteral(s string) string {
	escaped := strings.ReplaceAll(s, `'`, `''`)
	if !strings.Contains(s, `\`) {
		return `'` + escaped + `'`
	}

	return `E'` + strings.ReplaceAll(escaped, `\`, `\\`) + `'`
}

// Queryf builds a SQL string from a format template and safe arguments. Each
// argument is rendered through its escaping rules before substitution; since
// every argument must satisfy Safe, there is no way to pass an unwrapped
// string through this call site.
//
// Example usage:
//
//	q := sqlsafe.Queryf("GRANT SELECT ON %s TO %s",
//		sqlsafe.Identifier("events"),
//		sqlsafe.Identifier("reporting"),
//	)
//	// GRANT SELECT ON "events" TO "reporting"
func Queryf(format string, args ...Safe) string {
	rendered := make([]any, len(args))
	for i, arg := range args {
		rendered[i] = arg.String()
	}

	return fmt.Sprintf(format, rendered...)
}
