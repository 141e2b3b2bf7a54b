// Package memory provides session-scoped conversation history and context
// storage for memory reader and writer vertices.
//
// The Store interface covers appending and reading history plus keyed
// context values with optional expiry. InMemoryStore serves tests and
// single-process runs; the redis, sqlite and postgres subpackages persist
// across processes.
package memory
