// Package database provides SQLite connectivity for Facility Core.
//
// It manages the connection (WAL mode for concurrent reads, busy timeout,
// foreign keys enforced), versioned schema migrations embedded into the
// binary, and lifecycle/health checks.
//
// All queries use parameterised statements, and the database file is
// created with owner-only permissions.
package database
