package vfs

import (
	"context"
	"time"

	"github.com/datazoode/flapi/pkg/logger"
)

// BackendHealth is one backend's startup probe result.
type BackendHealth struct {
	Backend string        `json:"backend"`
	Path    string        `json:"path"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// HealthChecker probes each configured storage backend once at startup.
type HealthChecker struct {
	router *Router
	probes map[string]string // backend name -> probe path
}

// NewHealthChecker creates a checker over the router.
func NewHealthChecker(router *Router) *HealthChecker {
	return &HealthChecker{router: router, probes: map[string]string{}}
}

// AddProbe registers a backend probe path (e.g. "s3" -> "s3://bucket/").
func (h *HealthChecker) AddProbe(backend, path string) {
	h.probes[backend] = path
}

// CheckAll probes every registered backend, returning per-backend latency and
// error. A failed probe is reported, not fatal; the caller decides.
func (h *HealthChecker) CheckAll(ctx context.Context) []BackendHealth {
	out := make([]BackendHealth, 0, len(h.probes))
	for backend, path := range h.probes {
		start := time.Now()
		_, err := h.router.FileExists(ctx, path)
		result := BackendHealth{
			Backend: backend,
			Path:    path,
			Healthy: err == nil,
			Latency: time.Since(start),
		}
		if err != nil {
			result.Error = err.Error()
			logger.Warnf("storage backend %s probe failed: %v", backend, err)
		} else {
			logger.Debugf("storage backend %s healthy (%s)", backend, result.Latency)
		}
		out = append(out, result)
	}
	return out
}
