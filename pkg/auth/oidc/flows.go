package oidc

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/datazoode/flapi/pkg/config"
)

// ClientCredentialsToken obtains a service-account token via the
// client-credentials grant against the provider's token endpoint.
func (v *TokenValidator) ClientCredentialsToken(ctx context.Context, httpClient *http.Client, cfg *config.OIDCConfig) (*oauth2.Token, error) {
	doc, err := v.discovery.Discover(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("provider discovery failed: %w", err)
	}
	if doc.TokenEndpoint == "" {
		return nil, fmt.Errorf("provider %s publishes no token endpoint", cfg.Issuer)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     doc.TokenEndpoint,
		Scopes:       cfg.Scopes,
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	tok, err := cc.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("client credentials grant failed: %w", err)
	}
	return tok, nil
}

// RefreshToken exchanges a refresh token for a fresh access token. MCP
// sessions bound to OIDC tokens use this when NeedsTokenRefresh fires.
func (v *TokenValidator) RefreshToken(ctx context.Context, httpClient *http.Client, cfg *config.OIDCConfig, refreshToken string) (*oauth2.Token, error) {
	doc, err := v.discovery.Discover(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("provider discovery failed: %w", err)
	}

	oc := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  doc.AuthorizationEndpoint,
			TokenURL: doc.TokenEndpoint,
		},
		Scopes: cfg.Scopes,
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	tok, err := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh grant failed: %w", err)
	}
	return tok, nil
}
