// Package sqlite persists session history and context values in SQLite.
package sqlite
