package oidc

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/datazoode/flapi/pkg/logger"
	"github.com/datazoode/flapi/pkg/networking"
)

// DefaultJWKSTTL bounds how long a fetched key set is served from cache.
const DefaultJWKSTTL = 24 * time.Hour

// JWKSManager fetches JSON Web Key Sets and materializes RSA public keys,
// cached per URL with a TTL. An unknown kid forces exactly one refresh.
type JWKSManager struct {
	client *http.Client
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]*jwksEntry

	now func() time.Time
}

type jwksEntry struct {
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewJWKSManager creates a manager. A nil httpClient gets the networking
// defaults.
func NewJWKSManager(httpClient *http.Client, ttl time.Duration) (*JWKSManager, error) {
	if httpClient == nil {
		var err error
		httpClient, err = networking.NewHttpClientBuilder().Build()
		if err != nil {
			return nil, err
		}
	}
	if ttl <= 0 {
		ttl = DefaultJWKSTTL
	}
	return &JWKSManager{
		client: httpClient,
		ttl:    ttl,
		cache:  map[string]*jwksEntry{},
		now:    time.Now,
	}, nil
}

// GetKey returns the public key for kid from the key set at url. A cache miss
// on the kid triggers exactly one refresh and retry before returning an
// error, which covers provider key rotation.
func (m *JWKSManager) GetKey(ctx context.Context, kid, url string) (*rsa.PublicKey, error) {
	key, fresh, err := m.lookup(ctx, kid, url, false)
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}
	if fresh {
		return nil, fmt.Errorf("key %s not found in JWKS %s", kid, url)
	}

	logger.Debugf("kid %s missed in cached JWKS, refreshing %s", kid, url)
	key, _, err = m.lookup(ctx, kid, url, true)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("key %s not found in JWKS %s after refresh", kid, url)
	}
	return key, nil
}

// lookup returns the key if present, whether the served entry was freshly
// fetched during this call, and any fetch error.
func (m *JWKSManager) lookup(ctx context.Context, kid, url string, force bool) (*rsa.PublicKey, bool, error) {
	m.mu.Lock()
	entry, ok := m.cache[url]
	expired := ok && m.now().Sub(entry.fetchedAt) >= m.ttl
	if ok && !expired && !force {
		key := entry.keys[kid]
		m.mu.Unlock()
		return key, false, nil
	}
	m.mu.Unlock()

	keys, err := m.fetch(ctx, url)
	if err != nil {
		return nil, true, err
	}

	m.mu.Lock()
	m.cache[url] = &jwksEntry{keys: keys, fetchedAt: m.now()}
	key := keys[kid]
	m.mu.Unlock()
	return key, true, nil
}

func (m *JWKSManager) fetch(ctx context.Context, url string) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS %s: HTTP %d", url, resp.StatusCode)
	}

	set, err := jwk.ParseReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS from %s: %w", url, err)
	}

	keys := map[string]*rsa.PublicKey{}
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		kid, ok := key.KeyID()
		if !ok || kid == "" {
			continue
		}
		// Export materializes the base64url n/e parameters; non-RSA keys
		// fail here and are skipped.
		var pub rsa.PublicKey
		if err := jwk.Export(key, &pub); err != nil {
			logger.Debugf("skipping JWKS key %s: %v", kid, err)
			continue
		}
		keys[kid] = &pub
	}

	logger.Debugf("fetched JWKS %s (%d usable RSA keys)", url, len(keys))
	return keys, nil
}
