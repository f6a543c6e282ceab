package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/logger"
)

// Scheduler wakes periodically, finds endpoints whose schedule has elapsed
// and posts refresh jobs to a bounded worker pool. Refreshes for one endpoint
// never overlap; distinct endpoints run independently.
type Scheduler struct {
	manager   *Manager
	endpoints []*config.EndpointConfig

	tick    time.Duration
	workers *semaphore.Weighted

	mu       sync.Mutex
	nextFire map[string]time.Time
	inFlight map[string]bool

	now func() time.Time
}

// NewScheduler creates a scheduler over the cache-enabled endpoints with a
// worker pool of the given size.
func NewScheduler(manager *Manager, eps []*config.EndpointConfig, workerCount int64) *Scheduler {
	if workerCount <= 0 {
		workerCount = 4
	}
	var scheduled []*config.EndpointConfig
	for _, ep := range eps {
		if ep.Cache.Enabled && ep.Cache.Schedule != "" {
			scheduled = append(scheduled, ep)
		}
	}
	return &Scheduler{
		manager:   manager,
		endpoints: scheduled,
		tick:      time.Second,
		workers:   semaphore.NewWeighted(workerCount),
		nextFire:  map[string]time.Time{},
		inFlight:  map[string]bool{},
		now:       time.Now,
	}
}

// Run loops until ctx is cancelled. Call in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	logger.Infof("cache scheduler running with %d endpoints", len(s.endpoints))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// refreshInFlight reports whether a refresh for the named endpoint is
// currently running.
func (s *Scheduler) refreshInFlight(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[name]
}

// dispatchDue posts a refresh job for every endpoint whose next fire time has
// passed and that has no refresh in flight.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()
	for _, ep := range s.endpoints {
		name := endpointName(ep)
		interval, err := config.ParseInterval(ep.Cache.Schedule)
		if err != nil {
			// Load-time validation catches this; a stale config is skipped.
			continue
		}

		s.mu.Lock()
		next, seen := s.nextFire[name]
		if !seen {
			// First sight: fire immediately and bookmark the next slot.
			next = now
		}
		due := !now.Before(next) && !s.inFlight[name]
		if due {
			s.inFlight[name] = true
			s.nextFire[name] = now.Add(interval)
		}
		s.mu.Unlock()

		if !due {
			continue
		}
		s.post(ctx, ep, name)
	}
}

func (s *Scheduler) post(ctx context.Context, ep *config.EndpointConfig, name string) {
	if err := s.workers.Acquire(ctx, 1); err != nil {
		s.mu.Lock()
		s.inFlight[name] = false
		s.mu.Unlock()
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("cache refresh panicked for %s: %v", name, r)
				s.manager.events.Record(ctx, name, string(DetermineMode(&ep.Cache)), StatusError, "refresh panicked")
			}
			s.workers.Release(1)
			s.mu.Lock()
			s.inFlight[name] = false
			s.mu.Unlock()
		}()
		// Errors are already recorded as sync events inside Refresh.
		_ = s.manager.Refresh(ctx, ep)
	}()
}
