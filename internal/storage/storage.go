// Package storage defines the persistence interface for invocation records.
// Two backends are provided: SQLite (default, zero-config) and PostgreSQL.
package storage

import (
	"context"
	"time"
)

// Record is one completed script invocation in the audit trail.
// The script text itself is never persisted, only its digest.
type Record struct {
	ID          string    `json:"id"`
	Tool        string    `json:"tool,omitempty"` // Empty for raw script runs.
	ScriptSHA   string    `json:"script_sha"`     // SHA-256 of the script text, hex.
	ExitCode    int       `json:"exit_code"`
	StdoutBytes int       `json:"stdout_bytes"`
	StderrBytes int       `json:"stderr_bytes"`
	TimedOut    bool      `json:"timed_out"`
	Truncated   bool      `json:"truncated"`
	Denied      bool      `json:"denied"` // Blocked by policy before execution.
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter narrows an invocation listing.
type Filter struct {
	Tool  string // Filter to one tool. Empty = all.
	Limit int    // Defaults to 100.
}

// InvocationStore is the append-only invocation record store.
// No Update or Delete methods exist on this interface.
type InvocationStore interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
}

// Store is the unified persistence interface for the connector server.
type Store interface {
	Invocations() InvocationStore

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// Driver returns the storage driver name ("sqlite" or "postgres").
	Driver() string
}

// DriverSQLite is the SQLite driver name.
const DriverSQLite = "sqlite"

// DriverPostgres is the PostgreSQL driver name.
const DriverPostgres = "postgres"
