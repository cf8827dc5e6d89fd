// Package pg provides PostgreSQL connection pooling and schema migration for
// the persistent key-value store driver. Migrations are embedded in the
// binary and applied with goose at startup.
package pg
