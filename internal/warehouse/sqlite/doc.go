// Package sqlite executes compiled queries against a SQLite database.
//
// It is the local warehouse: scenario tests, demos and small extracts run
// here instead of against the reporting warehouse. Queries are compiled with
// the sqlgen.SQLite dialect.
//
// # Connection setup
//
// Every connection registers a regexp(pattern, value) function so the
// dialect's "value REGEXP pattern" works. The function follows SQL null
// semantics: a NULL value yields NULL, never a match or a mismatch.
//
// The pool holds a single connection. SQLite has one writer, and an
// in-memory database exists only on the connection that created it.
package sqlite
