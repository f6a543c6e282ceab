// Package cache implements per-endpoint cache refresh with cursor-based
// incremental modes, retention, and the refresh scheduler.
package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/engine"
	"github.com/datazoode/flapi/pkg/logger"
	"github.com/datazoode/flapi/pkg/sqlutil"
	"github.com/datazoode/flapi/pkg/template"
)

// Mode selects how a refresh writes into the cache table.
type Mode string

// Cache modes, selected from cursor and primary-key presence.
const (
	ModeFull   Mode = "full"
	ModeAppend Mode = "append"
	ModeMerge  Mode = "merge"
)

// DetermineMode derives the refresh mode from the cache configuration.
func DetermineMode(cfg *config.CacheConfig) Mode {
	if cfg.Cursor == nil || cfg.Cursor.Column == "" {
		return ModeFull
	}
	if len(cfg.PrimaryKeys) == 0 {
		return ModeAppend
	}
	return ModeMerge
}

// Manager refreshes cache-enabled endpoints.
type Manager struct {
	engine   engine.Engine
	renderer template.Renderer
	events   *SyncEventRecorder

	// readTemplate loads the cache template source for an endpoint.
	readTemplate func(ctx context.Context, ep *config.EndpointConfig) (string, error)
}

// NewManager creates a cache manager. readTemplate resolves each endpoint's
// cache template source text.
func NewManager(eng engine.Engine, renderer template.Renderer, events *SyncEventRecorder,
	readTemplate func(ctx context.Context, ep *config.EndpointConfig) (string, error)) *Manager {
	return &Manager{
		engine:       eng,
		renderer:     renderer,
		events:       events,
		readTemplate: readTemplate,
	}
}

// Refresh runs one refresh cycle for the endpoint. Errors are recorded as a
// sync event and returned; the scheduler ignores the return value so a failed
// run never stops the schedule.
func (m *Manager) Refresh(ctx context.Context, ep *config.EndpointConfig) error {
	cfg := &ep.Cache
	mode := DetermineMode(cfg)

	err := m.refresh(ctx, ep, cfg, mode)
	if err != nil {
		logger.Errorf("cache refresh failed for %s: %v", endpointName(ep), err)
		m.events.Record(ctx, endpointName(ep), string(mode), StatusError, err.Error())
		return err
	}
	m.events.Record(ctx, endpointName(ep), string(mode), StatusSuccess, "")
	return nil
}

func (m *Manager) refresh(ctx context.Context, ep *config.EndpointConfig, cfg *config.CacheConfig, mode Mode) error {
	// A broken snapshot catalog degrades to a full-history view rather than
	// blocking the refresh.
	snap, err := m.engine.SnapshotCatalog().LastSnapshot(ctx, cfg.CacheSchema, cfg.CacheTable)
	if err != nil {
		logger.Warnf("snapshot lookup failed for %s.%s, proceeding without bookmark: %v",
			cfg.CacheSchema, cfg.CacheTable, err)
		snap = engine.SnapshotInfo{}
	}

	params := map[string]any{
		"cacheCatalog": cfg.CacheCatalog,
		"cacheSchema":  cfg.CacheSchema,
		"cacheTable":   cfg.CacheTable,
		"cacheMode":    string(mode),
	}
	if cfg.Schedule != "" {
		params["cacheSchedule"] = cfg.Schedule
	}
	if cfg.Cursor != nil {
		params["cursorColumn"] = cfg.Cursor.Column
		params["cursorType"] = cfg.Cursor.Type
		params["cursorValue"] = snap.CursorValue
	}
	if len(cfg.PrimaryKeys) > 0 {
		params["primaryKeys"] = strings.Join(cfg.PrimaryKeys, ",")
	}

	source, err := m.readTemplate(ctx, ep)
	if err != nil {
		return fmt.Errorf("failed to load cache template: %w", err)
	}
	rendered, err := m.renderer.Render(source, params)
	if err != nil {
		return fmt.Errorf("failed to render cache template: %w", err)
	}
	// Cache templates routinely carry several statements (DDL plus the
	// insert); the engine executes them one at a time.
	for _, stmt := range sqlutil.SplitStatements(rendered) {
		if err := m.engine.Exec(ctx, stmt, nil); err != nil {
			return fmt.Errorf("cache query failed: %w", err)
		}
	}

	cursorValue := ""
	if cfg.Cursor != nil {
		cursorValue, err = m.readCursorBookmark(ctx, cfg)
		if err != nil {
			return err
		}
	}
	if err := m.engine.SnapshotCatalog().RecordSnapshot(ctx, cfg.CacheSchema, cfg.CacheTable, cursorValue); err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	return m.applyRetention(ctx, cfg)
}

// readCursorBookmark advances the bookmark to the maximum cursor value now
// present in the cache table.
func (m *Manager) readCursorBookmark(ctx context.Context, cfg *config.CacheConfig) (string, error) {
	query := fmt.Sprintf("SELECT MAX(%s) AS cursor_value FROM %s.%s",
		cfg.Cursor.Column, cfg.CacheSchema, cfg.CacheTable)
	rows, err := m.engine.Query(ctx, query, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read cursor bookmark: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return "", nil
	}
	values, err := rows.Values()
	if err != nil || len(values) == 0 || values[0] == nil {
		return "", err
	}
	return fmt.Sprintf("%v", values[0]), nil
}

func (m *Manager) applyRetention(ctx context.Context, cfg *config.CacheConfig) error {
	ret := &cfg.Retention
	switch {
	case ret.KeepLastSnapshots > 0:
		if err := m.engine.SnapshotCatalog().ExpireByCount(ctx, cfg.CacheSchema, cfg.CacheTable, ret.KeepLastSnapshots); err != nil {
			return fmt.Errorf("retention by count failed: %w", err)
		}
	case ret.MaxSnapshotAge != "":
		maxAge, err := ret.MaxAge()
		if err != nil {
			return err
		}
		if err := m.engine.SnapshotCatalog().ExpireByAge(ctx, cfg.CacheSchema, cfg.CacheTable, maxAge); err != nil {
			return fmt.Errorf("retention by age failed: %w", err)
		}
	}
	return nil
}

func endpointName(ep *config.EndpointConfig) string {
	if name := ep.MCPName(); name != "" {
		return name
	}
	return ep.URLPath
}
