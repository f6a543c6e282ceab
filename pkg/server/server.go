package server

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/datazoode/flapi/pkg/auth"
	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/endpoints"
	"github.com/datazoode/flapi/pkg/errors"
	"github.com/datazoode/flapi/pkg/executor"
	"github.com/datazoode/flapi/pkg/logger"
	"github.com/datazoode/flapi/pkg/mcp"
	"github.com/datazoode/flapi/pkg/ratelimit"
	"github.com/datazoode/flapi/pkg/template"
)

// TemplateReader resolves an endpoint's SQL template source text.
type TemplateReader func(ctx context.Context, ep *config.EndpointConfig) (string, error)

// Server owns the HTTP surface: REST endpoints from the repository plus the
// MCP endpoints. The repository is swapped atomically on reload; in-flight
// requests keep the snapshot they started with.
type Server struct {
	repo atomic.Pointer[endpoints.Repository]

	executor     *executor.Executor
	renderer     template.Renderer
	readTemplate TemplateReader

	authMiddleware *auth.Middleware
	rateLimiter    *ratelimit.Middleware
	sessions       *mcp.SessionManager
	mcpAuth        *config.AuthConfig
}

// New creates a server over the initial repository.
func New(repo *endpoints.Repository, exec *executor.Executor, renderer template.Renderer,
	readTemplate TemplateReader, authMiddleware *auth.Middleware, mcpAuth *config.AuthConfig) *Server {
	s := &Server{
		executor:       exec,
		renderer:       renderer,
		readTemplate:   readTemplate,
		authMiddleware: authMiddleware,
		rateLimiter:    ratelimit.NewMiddleware(),
		sessions:       mcp.NewSessionManager(0),
		mcpAuth:        mcpAuth,
	}
	s.repo.Store(repo)
	return s
}

// Repository returns the current endpoint snapshot.
func (s *Server) Repository() *endpoints.Repository {
	return s.repo.Load()
}

// Replace publishes a new endpoint repository. Readers snapshot the pointer
// at request start, so replacement is safe mid-traffic.
func (s *Server) Replace(repo *endpoints.Repository) {
	s.repo.Store(repo)
	logger.Infof("endpoint repository replaced (%d endpoints)", repo.Count())
}

// Sessions exposes the MCP session manager, e.g. for the cleanup loop.
func (s *Server) Sessions() *mcp.SessionManager {
	return s.sessions
}

// Router builds the chi router with every REST endpoint and the MCP surface
// mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	dispatcher := mcp.NewDispatcher(
		s.Repository, s.executor, s.renderer, s.sessions,
		s.authMiddleware, s.mcpAuth, s.readTemplate,
	)
	r.Post("/mcp/jsonrpc", dispatcher.ServeHTTP)
	r.Get("/mcp/health", mcp.NewHealthHandler(s.Repository, s.sessions).ServeHTTP)

	for _, ep := range s.Repository().All() {
		if ep.URLPath == "" {
			continue
		}
		method := ep.Method
		if method == "" {
			method = http.MethodGet
		}
		// Rate limiting runs before auth so rejected clients cannot burn
		// credential checks; both wrap the endpoint handler.
		var h http.Handler = NewRestHandler(ep, s.executor, s.renderer, s.readTemplate)
		h = s.authMiddleware.Wrap(ep, h)
		h = s.rateLimiter.Wrap(ep, h)
		r.Method(method, ep.URLPath, h)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteHTTP(w, errors.NewNotFoundError("Endpoint not found"))
	})
	return r
}
