package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/datazoode/flapi/pkg/auth"
	"github.com/datazoode/flapi/pkg/config"
)

func limitedEndpoint(max, interval int, strategy string) *config.EndpointConfig {
	return &config.EndpointConfig{
		URLPath: "/x",
		RateLimit: config.RateLimitConfig{
			Enabled: true, Max: max, Interval: interval, Strategy: strategy,
		},
	}
}

func serve(h http.Handler, remoteAddr string, ac *auth.AuthContext) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = remoteAddr
	if ac != nil {
		req = req.WithContext(auth.WithAuthContext(req.Context(), ac))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestMiddleware_Disabled(t *testing.T) {
	t.Parallel()

	m := NewMiddleware()
	h := m.Wrap(&config.EndpointConfig{URLPath: "/x"}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, serve(h, "1.2.3.4:100", nil))
	}
}

func TestMiddleware_WindowLimit(t *testing.T) {
	t.Parallel()

	m := NewMiddleware()
	now := time.Now()
	m.now = func() time.Time { return now }

	h := m.Wrap(limitedEndpoint(3, 60, "window"), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(h, "1.2.3.4:100", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "1.2.3.4:100", nil))

	// A different remote address has its own window.
	assert.Equal(t, http.StatusOK, serve(h, "5.6.7.8:100", nil))

	// The window resets after the interval.
	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, serve(h, "1.2.3.4:100", nil))
}

func TestMiddleware_KeyedByUsername(t *testing.T) {
	t.Parallel()

	m := NewMiddleware()
	now := time.Now()
	m.now = func() time.Time { return now }

	h := m.Wrap(limitedEndpoint(1, 60, "window"), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	alice := &auth.AuthContext{Authenticated: true, Username: "alice"}
	bob := &auth.AuthContext{Authenticated: true, Username: "bob"}

	// Same remote address, distinct principals.
	assert.Equal(t, http.StatusOK, serve(h, "1.2.3.4:100", alice))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "1.2.3.4:100", alice))
	assert.Equal(t, http.StatusOK, serve(h, "1.2.3.4:100", bob))
}

func TestMiddleware_BucketLimit(t *testing.T) {
	t.Parallel()

	m := NewMiddleware()
	h := m.Wrap(limitedEndpoint(2, 3600, ""), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, serve(h, "1.2.3.4:100", nil))
	assert.Equal(t, http.StatusOK, serve(h, "1.2.3.4:100", nil))
	code := serve(h, "1.2.3.4:100", nil)
	assert.Equal(t, http.StatusTooManyRequests, code, "bucket of 2 drains after two requests")
}

func TestMiddleware_RejectionBody(t *testing.T) {
	t.Parallel()

	m := NewMiddleware()
	h := m.Wrap(limitedEndpoint(0, 60, "window"), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}
