// Package enginetest provides an in-memory Engine fake for tests.
package enginetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/datazoode/flapi/pkg/engine"
)

// QueryResult is one scripted result set.
type QueryResult struct {
	Columns []engine.Column
	Rows    [][]any
	Err     error
}

// FakeEngine records executed statements and serves scripted results. Results
// are matched by substring against the executed SQL; the first match wins.
type FakeEngine struct {
	mu sync.Mutex

	// Scripted responses.
	results  []scripted
	execErr  map[string]error
	defaults QueryResult

	// Recorded calls.
	Queries []ExecutedStatement
	Execs   []ExecutedStatement

	secrets   *FakeSecretCatalog
	snapshots *FakeSnapshotCatalog
}

type scripted struct {
	substr string
	result QueryResult
}

// ExecutedStatement records one statement with its parameters.
type ExecutedStatement struct {
	SQL    string
	Params map[string]any
}

// New creates an empty fake engine.
func New() *FakeEngine {
	return &FakeEngine{
		execErr:   map[string]error{},
		secrets:   NewFakeSecretCatalog(),
		snapshots: NewFakeSnapshotCatalog(),
	}
}

// StubQuery serves result whenever the executed SQL contains substr.
func (f *FakeEngine) StubQuery(substr string, result QueryResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, scripted{substr, result})
}

// StubDefault serves result for any unmatched query.
func (f *FakeEngine) StubDefault(result QueryResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaults = result
}

// StubExecError fails Exec calls whose SQL contains substr.
func (f *FakeEngine) StubExecError(substr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErr[substr] = err
}

// Query implements engine.Engine.
func (f *FakeEngine) Query(_ context.Context, sql string, params map[string]any) (engine.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, ExecutedStatement{sql, params})
	for _, s := range f.results {
		if s.substr != "" && contains(sql, s.substr) {
			if s.result.Err != nil {
				return nil, s.result.Err
			}
			return newFakeRows(s.result), nil
		}
	}
	if f.defaults.Err != nil {
		return nil, f.defaults.Err
	}
	return newFakeRows(f.defaults), nil
}

// Exec implements engine.Engine.
func (f *FakeEngine) Exec(_ context.Context, sql string, params map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Execs = append(f.Execs, ExecutedStatement{sql, params})
	for substr, err := range f.execErr {
		if contains(sql, substr) {
			return err
		}
	}
	return nil
}

// SecretCatalog implements engine.Engine.
func (f *FakeEngine) SecretCatalog() engine.SecretCatalog { return f.secrets }

// Secrets returns the fake catalog for assertions.
func (f *FakeEngine) Secrets() *FakeSecretCatalog { return f.secrets }

// SnapshotCatalog implements engine.Engine.
func (f *FakeEngine) SnapshotCatalog() engine.SnapshotCatalog { return f.snapshots }

// Snapshots returns the fake catalog for seeding and assertions.
func (f *FakeEngine) Snapshots() *FakeSnapshotCatalog { return f.snapshots }

// Close implements engine.Engine.
func (f *FakeEngine) Close() error { return nil }

func contains(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}

type fakeRows struct {
	result QueryResult
	idx    int
}

func newFakeRows(r QueryResult) *fakeRows {
	return &fakeRows{result: r, idx: -1}
}

func (r *fakeRows) Columns() []engine.Column { return r.result.Columns }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.result.Rows)
}

func (r *fakeRows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.result.Rows) {
		return nil, fmt.Errorf("no current row")
	}
	return r.result.Rows[r.idx], nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }

// FakeSecretCatalog stores secrets in memory.
type FakeSecretCatalog struct {
	mu      sync.Mutex
	Created []engine.Secret
}

// NewFakeSecretCatalog creates an empty catalog.
func NewFakeSecretCatalog() *FakeSecretCatalog {
	return &FakeSecretCatalog{}
}

// CreateSecret implements engine.SecretCatalog.
func (c *FakeSecretCatalog) CreateSecret(_ context.Context, secret engine.Secret) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Created = append(c.Created, secret)
	return nil
}

// GetSecret implements engine.SecretCatalog.
func (c *FakeSecretCatalog) GetSecret(_ context.Context, name string) (*engine.Secret, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.Created {
		if c.Created[i].Name == name {
			s := c.Created[i]
			return &s, nil
		}
	}
	return nil, fmt.Errorf("secret %s not found", name)
}

// FakeSnapshotCatalog stores snapshot info in memory.
type FakeSnapshotCatalog struct {
	mu        sync.Mutex
	snapshots map[string][]engine.SnapshotInfo

	// LastErr, when set, fails LastSnapshot calls.
	LastErr error
	// Expired records retention calls as "schema.table:count=<keep>" or
	// "schema.table:age=<duration>".
	Expired []string
}

// NewFakeSnapshotCatalog creates an empty catalog.
func NewFakeSnapshotCatalog() *FakeSnapshotCatalog {
	return &FakeSnapshotCatalog{snapshots: map[string][]engine.SnapshotInfo{}}
}

func key(schema, table string) string { return schema + "." + table }

// Seed installs snapshot history for a table.
func (c *FakeSnapshotCatalog) Seed(schema, table string, infos ...engine.SnapshotInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[key(schema, table)] = infos
}

// LastSnapshot implements engine.SnapshotCatalog.
func (c *FakeSnapshotCatalog) LastSnapshot(_ context.Context, schema, table string) (engine.SnapshotInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LastErr != nil {
		return engine.SnapshotInfo{}, c.LastErr
	}
	infos := c.snapshots[key(schema, table)]
	if len(infos) == 0 {
		return engine.SnapshotInfo{}, nil
	}
	return infos[len(infos)-1], nil
}

// RecordSnapshot implements engine.SnapshotCatalog.
func (c *FakeSnapshotCatalog) RecordSnapshot(_ context.Context, schema, table, cursorValue string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(schema, table)
	infos := c.snapshots[k]
	var id int64 = 1
	if len(infos) > 0 {
		id = infos[len(infos)-1].SnapshotID + 1
	}
	c.snapshots[k] = append(infos, engine.SnapshotInfo{
		SnapshotID:   id,
		SnapshotTime: time.Now(),
		CursorValue:  cursorValue,
	})
	return nil
}

// ExpireByCount implements engine.SnapshotCatalog.
func (c *FakeSnapshotCatalog) ExpireByCount(_ context.Context, schema, table string, keep int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Expired = append(c.Expired, fmt.Sprintf("%s.%s:count=%d", schema, table, keep))
	return nil
}

// ExpireByAge implements engine.SnapshotCatalog.
func (c *FakeSnapshotCatalog) ExpireByAge(_ context.Context, schema, table string, maxAge time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Expired = append(c.Expired, fmt.Sprintf("%s.%s:age=%s", schema, table, maxAge))
	return nil
}
