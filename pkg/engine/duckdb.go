package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	// Registers the "duckdb" database/sql driver.
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/datazoode/flapi/pkg/logger"
)

// DuckDB adapts an embedded DuckDB database to the Engine interface.
type DuckDB struct {
	db          *sql.DB
	cacheSchema string

	secrets   *duckSecretCatalog
	snapshots *duckSnapshotCatalog
}

// Open opens (or creates) a DuckDB database. An empty path opens an
// in-memory database. Settings are applied as PRAGMA-style SET statements.
func Open(path, cacheSchema string, settings map[string]string) (*DuckDB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine database: %w", err)
	}
	for k, v := range settings {
		if _, err := db.Exec(fmt.Sprintf("SET %s = '%s'", k, v)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply engine setting %s: %w", k, err)
		}
	}
	if cacheSchema == "" {
		cacheSchema = "flapi_cache"
	}
	d := &DuckDB{db: db, cacheSchema: cacheSchema}
	d.secrets = &duckSecretCatalog{db: db, known: map[string]Secret{}}
	d.snapshots = &duckSnapshotCatalog{db: db, schema: cacheSchema}
	if err := d.snapshots.ensureTables(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Query implements Engine.
func (d *DuckDB) Query(ctx context.Context, query string, params map[string]any) (Rows, error) {
	stmt, err := d.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare failed: %w", err)
	}
	rows, err := stmt.QueryContext(ctx, namedArgs(params)...)
	if err != nil {
		stmt.Close()
		return nil, fmt.Errorf("execute failed: %w", err)
	}
	return &duckRows{rows: rows, stmt: stmt}, nil
}

// Exec implements Engine.
func (d *DuckDB) Exec(ctx context.Context, query string, params map[string]any) error {
	_, err := d.db.ExecContext(ctx, query, namedArgs(params)...)
	return err
}

// SecretCatalog implements Engine.
func (d *DuckDB) SecretCatalog() SecretCatalog {
	return d.secrets
}

// SnapshotCatalog implements Engine.
func (d *DuckDB) SnapshotCatalog() SnapshotCatalog {
	return d.snapshots
}

// Close implements Engine.
func (d *DuckDB) Close() error {
	return d.db.Close()
}

func namedArgs(params map[string]any) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, 0, len(params))
	for k, v := range params {
		args = append(args, sql.Named(k, v))
	}
	return args
}

// duckRows adapts *sql.Rows to the Rows interface, carrying column type names
// for the converter registry.
type duckRows struct {
	rows *sql.Rows
	stmt *sql.Stmt

	cols []Column
	err  error
}

func (r *duckRows) Columns() []Column {
	if r.cols != nil {
		return r.cols
	}
	types, err := r.rows.ColumnTypes()
	if err != nil {
		r.err = err
		return nil
	}
	r.cols = make([]Column, len(types))
	for i, t := range types {
		r.cols[i] = Column{Name: t.Name(), TypeName: strings.ToUpper(t.DatabaseTypeName())}
	}
	return r.cols
}

func (r *duckRows) Next() bool {
	return r.rows.Next()
}

func (r *duckRows) Values() ([]any, error) {
	cols := r.Columns()
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *duckRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *duckRows) Close() error {
	err := r.rows.Close()
	if serr := r.stmt.Close(); err == nil {
		err = serr
	}
	return err
}

// duckSecretCatalog issues CREATE SECRET statements and mirrors the created
// entries so option maps survive the engine's own redaction.
type duckSecretCatalog struct {
	db    *sql.DB
	mu    sync.RWMutex
	known map[string]Secret
}

func (c *duckSecretCatalog) CreateSecret(ctx context.Context, secret Secret) error {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE SECRET %s (TYPE %s", quoteIdent(secret.Name), secret.Type)
	for k, v := range secret.Options {
		fmt.Fprintf(&b, ", %s '%s'", k, strings.ReplaceAll(v, "'", "''"))
	}
	if secret.Scope != "" {
		fmt.Fprintf(&b, ", SCOPE '%s'", strings.ReplaceAll(secret.Scope, "'", "''"))
	}
	b.WriteString(")")

	if _, err := c.db.ExecContext(ctx, b.String()); err != nil {
		return fmt.Errorf("failed to create secret %s: %w", secret.Name, err)
	}
	c.mu.Lock()
	c.known[secret.Name] = secret
	c.mu.Unlock()
	logger.Debugf("installed engine secret %s (type %s)", secret.Name, secret.Type)
	return nil
}

func (c *duckSecretCatalog) GetSecret(_ context.Context, name string) (*Secret, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.known[name]; ok {
		copied := s
		return &copied, nil
	}
	return nil, fmt.Errorf("secret %s not found", name)
}

// duckSnapshotCatalog keeps snapshot bookkeeping in the cache schema. The
// engine's own time-travel metadata is consulted through these tables so the
// cache manager sees one stable surface.
type duckSnapshotCatalog struct {
	db     *sql.DB
	schema string
}

func (c *duckSnapshotCatalog) ensureTables(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(c.schema)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.flapi_snapshots (
			snapshot_id BIGINT,
			schema_name VARCHAR,
			table_name VARCHAR,
			snapshot_time TIMESTAMP,
			cursor_value VARCHAR
		)`, quoteIdent(c.schema)),
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare snapshot catalog: %w", err)
		}
	}
	return nil
}

func (c *duckSnapshotCatalog) LastSnapshot(ctx context.Context, schema, table string) (SnapshotInfo, error) {
	row := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT snapshot_id, snapshot_time, cursor_value
		FROM %s.flapi_snapshots
		WHERE schema_name = ? AND table_name = ?
		ORDER BY snapshot_id DESC LIMIT 1`, quoteIdent(c.schema)), schema, table)

	var info SnapshotInfo
	var ts time.Time
	if err := row.Scan(&info.SnapshotID, &ts, &info.CursorValue); err != nil {
		if err == sql.ErrNoRows {
			return SnapshotInfo{}, nil
		}
		return SnapshotInfo{}, err
	}
	info.SnapshotTime = ts
	return info, nil
}

func (c *duckSnapshotCatalog) RecordSnapshot(ctx context.Context, schema, table, cursorValue string) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s.flapi_snapshots
		SELECT COALESCE(MAX(snapshot_id), 0) + 1, ?, ?, NOW(), ?
		FROM %s.flapi_snapshots WHERE schema_name = ? AND table_name = ?`,
		quoteIdent(c.schema), quoteIdent(c.schema)),
		schema, table, cursorValue, schema, table)
	return err
}

func (c *duckSnapshotCatalog) ExpireByCount(ctx context.Context, schema, table string, keep int) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.flapi_snapshots
		WHERE schema_name = ? AND table_name = ?
		AND snapshot_id <= (
			SELECT COALESCE(MAX(snapshot_id), 0) - ?
			FROM %s.flapi_snapshots WHERE schema_name = ? AND table_name = ?
		)`, quoteIdent(c.schema), quoteIdent(c.schema)),
		schema, table, keep, schema, table)
	return err
}

func (c *duckSnapshotCatalog) ExpireByAge(ctx context.Context, schema, table string, maxAge time.Duration) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.flapi_snapshots
		WHERE schema_name = ? AND table_name = ?
		AND snapshot_time < NOW() - INTERVAL (?) SECOND`, quoteIdent(c.schema)),
		schema, table, int64(maxAge.Seconds()))
	return err
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
