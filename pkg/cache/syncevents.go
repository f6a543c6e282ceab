package cache

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/datazoode/flapi/pkg/engine"
	"github.com/datazoode/flapi/pkg/logger"
)

// Sync event statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SyncEventRecorder appends refresh outcomes to the sync-event table.
// Recording never propagates errors: a broken event table must not take the
// refresh loop down with it.
type SyncEventRecorder struct {
	engine engine.Engine
	schema string
	ready  bool
}

// NewSyncEventRecorder creates a recorder writing into schema.flapi_sync_events.
func NewSyncEventRecorder(eng engine.Engine, schema string) *SyncEventRecorder {
	return &SyncEventRecorder{engine: eng, schema: schema}
}

// Record appends one event.
func (r *SyncEventRecorder) Record(ctx context.Context, endpoint, mode, status, message string) {
	if !r.ready {
		if err := r.ensureTable(ctx); err != nil {
			logger.Warnf("sync event table unavailable: %v", err)
			return
		}
		r.ready = true
	}
	err := r.engine.Exec(ctx,
		"INSERT INTO "+r.schema+".flapi_sync_events VALUES ($id, $endpoint, $mode, $status, $message, $at)",
		map[string]any{
			"id":       uuid.NewString(),
			"endpoint": endpoint,
			"mode":     mode,
			"status":   status,
			"message":  message,
			"at":       time.Now().UTC(),
		})
	if err != nil {
		logger.Warnf("failed to record sync event for %s: %v", endpoint, err)
	}
}

func (r *SyncEventRecorder) ensureTable(ctx context.Context) error {
	return r.engine.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+r.schema+`.flapi_sync_events (
		id VARCHAR, endpoint VARCHAR, mode VARCHAR, status VARCHAR, message VARCHAR, recorded_at TIMESTAMP)`, nil)
}
