// Package engine defines the narrow interface the gateway requires from the
// embedded analytical query engine, together with the DuckDB-backed adapter.
package engine

import (
	"context"
	"time"
)

// Column describes one result column.
type Column struct {
	Name string
	// TypeName is the engine's type name (e.g. INTEGER, VARCHAR, TIMESTAMP).
	TypeName string
}

// Rows is a forward-only result iterator.
type Rows interface {
	// Columns returns the result shape. Valid after the first Next call at
	// the latest.
	Columns() []Column
	// Next advances to the next row, returning false at the end of the set.
	Next() bool
	// Values returns the current row's values in column order.
	Values() ([]any, error)
	// Err reports any error that terminated iteration.
	Err() error
	Close() error
}

// Secret is one entry of the engine's secret catalog.
type Secret struct {
	Name    string
	Type    string // s3, gcs, azure, http
	Scope   string
	Options map[string]string
}

// SecretCatalog installs and looks up engine-managed credentials.
type SecretCatalog interface {
	CreateSecret(ctx context.Context, secret Secret) error
	GetSecret(ctx context.Context, name string) (*Secret, error)
}

// SnapshotInfo is the engine's time-travel metadata for a cached table.
type SnapshotInfo struct {
	SnapshotID   int64
	SnapshotTime time.Time
	CursorValue  string
}

// SnapshotCatalog exposes time-travel snapshot state and retention.
type SnapshotCatalog interface {
	// LastSnapshot returns the most recent snapshot info for schema.table.
	// A table with no snapshots returns a zero SnapshotInfo and no error.
	LastSnapshot(ctx context.Context, schema, table string) (SnapshotInfo, error)
	// RecordSnapshot appends a snapshot entry after a refresh.
	RecordSnapshot(ctx context.Context, schema, table, cursorValue string) error
	// ExpireByCount drops all but the newest keep snapshots.
	ExpireByCount(ctx context.Context, schema, table string, keep int) error
	// ExpireByAge drops snapshots older than maxAge.
	ExpireByAge(ctx context.Context, schema, table string, maxAge time.Duration) error
}

// Engine is the gateway's view of the embedded query engine.
type Engine interface {
	// Query prepares sql, binds the named parameters and executes it.
	Query(ctx context.Context, sql string, params map[string]any) (Rows, error)
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string, params map[string]any) error
	SecretCatalog() SecretCatalog
	SnapshotCatalog() SnapshotCatalog
	Close() error
}
