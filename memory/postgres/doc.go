// Package postgres persists session history and context values in
// PostgreSQL via pgx.
package postgres
