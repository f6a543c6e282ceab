package vfs

import (
	"context"
	"fmt"
)

// Router dispatches paths to the provider registered for their scheme. Plain
// paths and file:// URIs go to the local provider.
type Router struct {
	local     FileProvider
	providers map[string]FileProvider
}

// NewRouter creates a router with the given local provider.
func NewRouter(local FileProvider) *Router {
	return &Router{local: local, providers: map[string]FileProvider{}}
}

// Register installs a provider for a scheme (e.g. "s3"). The azure alias
// schemes should each be registered explicitly.
func (r *Router) Register(scheme string, p FileProvider) {
	r.providers[scheme] = p
}

// Resolve returns the provider responsible for path.
func (r *Router) Resolve(path string) (FileProvider, error) {
	scheme := Scheme(path)
	if scheme == "" || scheme == "file" {
		return r.local, nil
	}
	p, ok := r.providers[scheme]
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for scheme %s://", scheme)
	}
	return p, nil
}

// ReadFile implements FileProvider.
func (r *Router) ReadFile(ctx context.Context, path string) ([]byte, error) {
	p, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	return p.ReadFile(ctx, path)
}

// FileExists implements FileProvider.
func (r *Router) FileExists(ctx context.Context, path string) (bool, error) {
	p, err := r.Resolve(path)
	if err != nil {
		return false, err
	}
	return p.FileExists(ctx, path)
}

// ListFiles implements FileProvider.
func (r *Router) ListFiles(ctx context.Context, dir, pattern string) ([]string, error) {
	p, err := r.Resolve(dir)
	if err != nil {
		return nil, err
	}
	return p.ListFiles(ctx, dir, pattern)
}
