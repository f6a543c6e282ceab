// Package oidc implements OpenID Connect discovery, JWKS management and
// token validation for the OIDC authenticator.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/datazoode/flapi/pkg/logger"
	"github.com/datazoode/flapi/pkg/networking"
)

// UserAgent is sent on all OIDC and JWKS requests.
const UserAgent = "flAPI/1.0"

// DefaultDiscoveryTTL bounds how long provider metadata is cached.
const DefaultDiscoveryTTL = 24 * time.Hour

// DiscoveryDocument is the subset of provider metadata the gateway uses.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// DiscoveryClient fetches and caches provider metadata per issuer.
type DiscoveryClient struct {
	client *http.Client
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]*discoveryEntry

	now func() time.Time
}

type discoveryEntry struct {
	doc       *DiscoveryDocument
	fetchedAt time.Time
}

// NewDiscoveryClient creates a discovery client. A nil httpClient gets the
// networking defaults.
func NewDiscoveryClient(httpClient *http.Client, ttl time.Duration) (*DiscoveryClient, error) {
	if httpClient == nil {
		var err error
		httpClient, err = networking.NewHttpClientBuilder().Build()
		if err != nil {
			return nil, err
		}
	}
	if ttl <= 0 {
		ttl = DefaultDiscoveryTTL
	}
	return &DiscoveryClient{
		client: httpClient,
		ttl:    ttl,
		cache:  map[string]*discoveryEntry{},
		now:    time.Now,
	}, nil
}

// Discover returns the provider metadata for the issuer, from cache when
// fresh. Missing issuer or jwks_uri in the response is a hard failure.
func (c *DiscoveryClient) Discover(ctx context.Context, issuer string) (*DiscoveryDocument, error) {
	c.mu.Lock()
	if entry, ok := c.cache[issuer]; ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		doc := entry.doc
		c.mu.Unlock()
		return doc, nil
	}
	c.mu.Unlock()

	doc, err := c.fetch(ctx, issuer)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[issuer] = &discoveryEntry{doc: doc, fetchedAt: c.now()}
	c.mu.Unlock()
	return doc, nil
}

func (c *DiscoveryClient) fetch(ctx context.Context, issuer string) (*DiscoveryDocument, error) {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}
	if issuerURL.Scheme != "https" && !networking.IsLocalhost(issuerURL.Host) {
		return nil, fmt.Errorf("issuer must use HTTPS: %s", issuer)
	}

	wellKnown := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", wellKnown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", wellKnown, resp.StatusCode)
	}

	// Bound the response so a misbehaving provider cannot exhaust memory.
	const maxResponseSize = 1024 * 1024
	var doc DiscoveryDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: unexpected response: %w", wellKnown, err)
	}

	if doc.Issuer == "" {
		return nil, fmt.Errorf("%s: missing issuer", wellKnown)
	}
	if doc.JWKSURI == "" {
		return nil, fmt.Errorf("%s: missing jwks_uri", wellKnown)
	}
	if err := networking.ValidateEndpointURL(doc.JWKSURI); err != nil {
		return nil, fmt.Errorf("invalid jwks_uri: %w", err)
	}

	logger.Debugf("discovered OIDC metadata for %s (jwks: %s)", issuer, doc.JWKSURI)
	return &doc, nil
}
