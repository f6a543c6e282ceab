package vfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPProvider serves http:// and https:// URIs. Listing is not supported on
// plain HTTP backends.
type HTTPProvider struct {
	client *http.Client
}

// NewHTTPProvider wraps an HTTP client, typically built by pkg/networking.
func NewHTTPProvider(client *http.Client) *HTTPProvider {
	return &HTTPProvider{client: client}
}

// ReadFile implements FileProvider.
func (p *HTTPProvider) ReadFile(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http read %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http read %s: status %d", uri, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// FileExists implements FileProvider.
func (p *HTTPProvider) FileExists(ctx context.Context, uri string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("http head %s: %w", uri, err)
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("http head %s: status %d", uri, resp.StatusCode)
	}
}

// ListFiles implements FileProvider.
func (*HTTPProvider) ListFiles(_ context.Context, dir, _ string) ([]string, error) {
	return nil, fmt.Errorf("listing is not supported for HTTP backend: %s", dir)
}
