// Package endpoints holds the in-memory endpoint repository with its dual
// REST and MCP indexes.
package endpoints

import (
	"strings"

	"github.com/datazoode/flapi/pkg/config"
)

// Repository indexes endpoints by (method, url path) and by MCP name. It has
// no internal locking: reloads build a fresh repository and publish it with an
// atomic pointer swap, so a live repository is never mutated.
type Repository struct {
	rest map[string]*config.EndpointConfig
	mcp  map[string]*config.EndpointConfig
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		rest: make(map[string]*config.EndpointConfig),
		mcp:  make(map[string]*config.EndpointConfig),
	}
}

// Add inserts the endpoint into whichever indexes apply, replacing any prior
// entry under the same key.
func (r *Repository) Add(ep *config.EndpointConfig) {
	if key := ep.RestKey(); key != "" {
		r.rest[key] = ep
	}
	if name := ep.MCPName(); name != "" {
		r.mcp[name] = ep
	}
}

// GetByRest looks up an endpoint by URL path and method.
func (r *Repository) GetByRest(path, method string) (*config.EndpointConfig, bool) {
	ep, ok := r.rest[strings.ToUpper(method)+":"+path]
	return ep, ok
}

// GetByMCP looks up an endpoint by MCP name.
func (r *Repository) GetByMCP(name string) (*config.EndpointConfig, bool) {
	ep, ok := r.mcp[name]
	return ep, ok
}

// RemoveRest removes the REST index entry only; an MCP entry for the same
// endpoint stays live.
func (r *Repository) RemoveRest(path, method string) {
	delete(r.rest, strings.ToUpper(method)+":"+path)
}

// RemoveMCP removes the MCP index entry only.
func (r *Repository) RemoveMCP(name string) {
	delete(r.mcp, name)
}

// Count reports the number of unique endpoints; an endpoint present in both
// indexes counts once.
func (r *Repository) Count() int {
	seen := make(map[*config.EndpointConfig]bool, len(r.rest)+len(r.mcp))
	for _, ep := range r.rest {
		seen[ep] = true
	}
	for _, ep := range r.mcp {
		seen[ep] = true
	}
	return len(seen)
}

// Find returns all unique endpoints matching the predicate.
func (r *Repository) Find(pred func(*config.EndpointConfig) bool) []*config.EndpointConfig {
	var out []*config.EndpointConfig
	for _, ep := range r.all() {
		if pred(ep) {
			out = append(out, ep)
		}
	}
	return out
}

// All returns all unique endpoints.
func (r *Repository) All() []*config.EndpointConfig {
	return r.all()
}

func (r *Repository) all() []*config.EndpointConfig {
	seen := make(map[*config.EndpointConfig]bool, len(r.rest)+len(r.mcp))
	out := make([]*config.EndpointConfig, 0, len(r.rest)+len(r.mcp))
	for _, ep := range r.rest {
		if !seen[ep] {
			seen[ep] = true
			out = append(out, ep)
		}
	}
	for _, ep := range r.mcp {
		if !seen[ep] {
			seen[ep] = true
			out = append(out, ep)
		}
	}
	return out
}
