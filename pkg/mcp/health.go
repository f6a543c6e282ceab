package mcp

import (
	"encoding/json"
	"net/http"

	"github.com/datazoode/flapi/pkg/endpoints"
)

// HealthHandler serves GET /mcp/health with server identity and counts.
type HealthHandler struct {
	repo     func() *endpoints.Repository
	sessions *SessionManager
}

// NewHealthHandler creates the health endpoint.
func NewHealthHandler(repo func() *endpoints.Repository, sessions *SessionManager) *HealthHandler {
	return &HealthHandler{repo: repo, sessions: sessions}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	repo := h.repo()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"server":    ServerName,
		"version":   ServerVersion,
		"protocol":  ProtocolVersion,
		"tools":     len(listTools(repo)),
		"resources": len(listResources(repo)),
		"prompts":   len(listPrompts(repo)),
		"sessions":  h.sessions.Count(),
	})
}
