package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazoode/flapi/pkg/config"
)

// tokenProvider is an httptest issuer whose token endpoint records the grant
// it was asked for.
func tokenProvider(t *testing.T) (*httptest.Server, *map[string]string) {
	t.Helper()
	grant := map[string]string{}

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		grant["grant_type"] = r.PostForm.Get("grant_type")
		grant["refresh_token"] = r.PostForm.Get("refresh_token")
		grant["scope"] = r.PostForm.Get("scope")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &grant
}

func TestClientCredentialsToken(t *testing.T) {
	t.Parallel()

	srv, grant := tokenProvider(t)
	disc, err := NewDiscoveryClient(srv.Client(), 0)
	require.NoError(t, err)
	jwks, err := NewJWKSManager(srv.Client(), 0)
	require.NoError(t, err)
	v := NewTokenValidator(disc, jwks)

	cfg := &config.OIDCConfig{
		Issuer:       srv.URL,
		ClientID:     "svc",
		ClientSecret: "svc-secret",
		Scopes:       []string{"openid"},
	}
	tok, err := v.ClientCredentialsToken(context.Background(), srv.Client(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok.AccessToken)
	assert.Equal(t, "client_credentials", (*grant)["grant_type"])
	assert.Equal(t, "openid", (*grant)["scope"])
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	srv, grant := tokenProvider(t)
	disc, err := NewDiscoveryClient(srv.Client(), 0)
	require.NoError(t, err)
	jwks, err := NewJWKSManager(srv.Client(), 0)
	require.NoError(t, err)
	v := NewTokenValidator(disc, jwks)

	cfg := &config.OIDCConfig{Issuer: srv.URL, ClientID: "app", ClientSecret: "s"}
	tok, err := v.RefreshToken(context.Background(), srv.Client(), cfg, "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok.AccessToken)
	assert.Equal(t, "refresh_token", (*grant)["grant_type"])
	assert.Equal(t, "old-refresh", (*grant)["refresh_token"])
}
