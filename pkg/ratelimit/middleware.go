// Package ratelimit provides the per-endpoint request limiter.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/datazoode/flapi/pkg/auth"
	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/errors"
)

// limiter is one principal's state, either a token bucket or a fixed window.
type limiter interface {
	Allow(now time.Time) bool
}

type bucketLimiter struct {
	l *rate.Limiter
}

func (b *bucketLimiter) Allow(time.Time) bool {
	return b.l.Allow()
}

// windowLimiter counts requests in fixed intervals.
type windowLimiter struct {
	mu          sync.Mutex
	max         int
	interval    time.Duration
	windowStart time.Time
	count       int
}

func (w *windowLimiter) Allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.Sub(w.windowStart) >= w.interval {
		w.windowStart = now
		w.count = 0
	}
	if w.count >= w.max {
		return false
	}
	w.count++
	return true
}

// Middleware applies each endpoint's rate-limit config, keyed by the
// authenticated username when present and the remote address otherwise.
type Middleware struct {
	mu       sync.Mutex
	limiters map[string]limiter

	now func() time.Time
}

// NewMiddleware creates the limiter middleware.
func NewMiddleware() *Middleware {
	return &Middleware{limiters: map[string]limiter{}, now: time.Now}
}

// Wrap guards next with the endpoint's limiter. On rejection the response is
// completed here; later middlewares never run.
func (m *Middleware) Wrap(ep *config.EndpointConfig, next http.Handler) http.Handler {
	if !ep.RateLimit.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.allow(ep, principalKey(r)) {
			errors.WriteHTTP(w, errors.New(errors.ErrRateLimited, "Rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) allow(ep *config.EndpointConfig, principal string) bool {
	key := ep.RestKey() + "|" + principal

	m.mu.Lock()
	l, ok := m.limiters[key]
	if !ok {
		l = m.newLimiter(&ep.RateLimit)
		m.limiters[key] = l
	}
	m.mu.Unlock()

	return l.Allow(m.now())
}

func (m *Middleware) newLimiter(cfg *config.RateLimitConfig) limiter {
	interval := time.Duration(cfg.Interval) * time.Second
	if cfg.Strategy == "window" {
		return &windowLimiter{max: cfg.Max, interval: interval}
	}
	// Token bucket: capacity max, refilled evenly over the interval.
	return &bucketLimiter{l: rate.NewLimiter(rate.Limit(float64(cfg.Max)/interval.Seconds()), cfg.Max)}
}

// principalKey prefers the authenticated username over the remote address.
func principalKey(r *http.Request) string {
	if ac, ok := auth.FromContext(r.Context()); ok && ac.Authenticated && ac.Username != "" {
		return "user:" + ac.Username
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
