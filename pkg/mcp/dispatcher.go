package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/datazoode/flapi/pkg/auth"
	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/endpoints"
	"github.com/datazoode/flapi/pkg/executor"
	"github.com/datazoode/flapi/pkg/logger"
	"github.com/datazoode/flapi/pkg/template"
)

// methodsExemptFromAuth may be called before a session is authenticated.
var methodsExemptFromAuth = map[string]bool{
	"initialize": true,
	"ping":       true,
}

// Dispatcher serves the single JSON-RPC endpoint.
type Dispatcher struct {
	repo     func() *endpoints.Repository
	executor *executor.Executor
	renderer template.Renderer
	sessions *SessionManager
	auth     *auth.Middleware

	// authCfg, when enabled, gates non-exempt methods on session or header
	// authentication.
	authCfg *config.AuthConfig

	// readTemplate loads an endpoint's SQL template source.
	readTemplate func(ctx context.Context, ep *config.EndpointConfig) (string, error)
}

// NewDispatcher wires the dispatcher. repo returns the current endpoint
// repository snapshot; authCfg may be nil for an open server.
func NewDispatcher(
	repo func() *endpoints.Repository,
	exec *executor.Executor,
	renderer template.Renderer,
	sessions *SessionManager,
	authMiddleware *auth.Middleware,
	authCfg *config.AuthConfig,
	readTemplate func(ctx context.Context, ep *config.EndpointConfig) (string, error),
) *Dispatcher {
	return &Dispatcher{
		repo:         repo,
		executor:     exec,
		renderer:     renderer,
		sessions:     sessions,
		auth:         authMiddleware,
		authCfg:      authCfg,
		readTemplate: readTemplate,
	}
}

// ServeHTTP handles POST /mcp/jsonrpc.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		d.writeResponse(w, "", parseErrorResponse())
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		d.writeResponse(w, "", parseErrorResponse())
		return
	}

	if resp := validateRequest(&req); resp != nil {
		d.writeResponse(w, "", resp)
		return
	}

	session := d.resolveSession(r)
	if resp := d.checkAuth(r, &req, session); resp != nil {
		d.writeResponse(w, "", resp)
		return
	}

	resp, newSessionID := d.dispatch(r, &req, session)
	d.writeResponse(w, newSessionID, resp)
}

// resolveSession looks up the session named in the request header, bumping
// its activity on hit.
func (d *Dispatcher) resolveSession(r *http.Request) *Session {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return nil
	}
	s := d.sessions.GetSession(id)
	if s != nil {
		d.sessions.UpdateActivity(id)
	}
	return s
}

// checkAuth enforces the MCP auth configuration for methods that need it. A
// request passes on an authenticated session, or on valid header credentials.
func (d *Dispatcher) checkAuth(r *http.Request, req *Request, session *Session) *Response {
	if d.authCfg == nil || !d.authCfg.Enabled || methodsExemptFromAuth[req.Method] {
		return nil
	}
	if session != nil && session.Authenticated() {
		return nil
	}
	if d.auth != nil {
		if ac := d.auth.Authenticate(r, d.authCfg); ac != nil {
			if session != nil {
				d.sessions.SetAuthContext(session.ID, ac)
			}
			return nil
		}
	}
	return errorResponse(req.ID, CodeAuthRequired, "Authentication required",
		map[string]string{"method": req.Method})
}

// dispatch routes the request to its handler. The second return value is a
// session id to expose in the response header, set only by initialize.
func (d *Dispatcher) dispatch(r *http.Request, req *Request, session *Session) (resp *Response, newSessionID string) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("mcp handler panicked on %s: %v", req.Method, rec)
			resp = errorResponse(req.ID, CodeInternalError, "Internal error", fmt.Sprintf("%v", rec))
		}
	}()

	switch req.Method {
	case "initialize":
		return d.handleInitialize(r, req)
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": listTools(d.repo())}), ""
	case "tools/call":
		return d.handleToolsCall(r.Context(), req), ""
	case "resources/list":
		return resultResponse(req.ID, map[string]any{"resources": listResources(d.repo())}), ""
	case "resources/templates/list":
		return resultResponse(req.ID, map[string]any{"resourceTemplates": listResourceTemplates(d.repo())}), ""
	case "resources/read":
		return d.handleResourcesRead(r.Context(), req), ""
	case "prompts/list":
		return resultResponse(req.ID, map[string]any{"prompts": listPrompts(d.repo())}), ""
	case "prompts/get":
		return d.handlePromptsGet(req), ""
	case "ping":
		return d.handlePing(req), ""
	case "logging/setLevel":
		return d.handleSetLevel(req), ""
	case "completion/complete":
		return resultResponse(req.ID, map[string]any{
			"completion": map[string]any{"values": []string{}, "total": 0, "hasMore": false},
		}), ""
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "Method not found", req.Method), ""
	}
}

func (d *Dispatcher) writeResponse(w http.ResponseWriter, sessionID string, resp *Response) {
	payload, err := marshalUnescaped(resp)
	if err != nil {
		logger.Errorf("failed to encode JSON-RPC response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if sessionID != "" {
		w.Header().Set(SessionHeader, sessionID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
