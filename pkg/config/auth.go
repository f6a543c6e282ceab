package config

import (
	"fmt"
	"strings"
)

// AuthConfig configures authentication for one endpoint.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Type    string `yaml:"type" mapstructure:"type"` // basic, bearer, oidc

	// Inline users for basic auth.
	Users []UserConfig `yaml:"users" mapstructure:"users"`

	// Bearer (HS256) settings.
	JWTSecret string `yaml:"jwt-secret" mapstructure:"jwt-secret"`
	JWTIssuer string `yaml:"jwt-issuer" mapstructure:"jwt-issuer"`

	// OIDC settings.
	OIDC *OIDCConfig `yaml:"oidc" mapstructure:"oidc"`

	// FromSecret names an engine secret-catalog entry whose referenced JSON
	// blob holds basic-auth users, bootstrapped into the local secrets table.
	FromSecret string `yaml:"from-secret" mapstructure:"from-secret"`

	// AllowLegacyHashes keeps the plaintext and MD5 verification paths alive
	// for configs written against older deployments. New deployments should
	// store bcrypt hashes and disable this.
	AllowLegacyHashes *bool `yaml:"allow-legacy-hashes" mapstructure:"allow-legacy-hashes"`
}

// LegacyHashesAllowed reports the effective compatibility flag (default true).
func (a *AuthConfig) LegacyHashesAllowed() bool {
	return a.AllowLegacyHashes == nil || *a.AllowLegacyHashes
}

// UserConfig is one inline basic-auth user.
type UserConfig struct {
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	Roles    []string `yaml:"roles" mapstructure:"roles"`
}

// OIDCConfig configures OIDC token validation for an endpoint.
type OIDCConfig struct {
	Issuer           string   `yaml:"issuer" mapstructure:"issuer"`
	ClientID         string   `yaml:"client-id" mapstructure:"client-id"`
	ClientSecret     string   `yaml:"client-secret" mapstructure:"client-secret"`
	// AllowedAudiences lists the accepted token audiences; an empty list
	// accepts any audience.
	AllowedAudiences []string `yaml:"allowed-audiences" mapstructure:"allowed-audiences"`

	// Claim paths. RoleClaimPath supports dotted nesting such as
	// "realm_access.roles" and wins over RolesClaim when set.
	UsernameClaim string `yaml:"username-claim" mapstructure:"username-claim"`
	EmailClaim    string `yaml:"email-claim" mapstructure:"email-claim"`
	RolesClaim    string `yaml:"roles-claim" mapstructure:"roles-claim"`
	GroupsClaim   string `yaml:"groups-claim" mapstructure:"groups-claim"`
	RoleClaimPath string `yaml:"role-claim-path" mapstructure:"role-claim-path"`

	Scopes []string `yaml:"scopes" mapstructure:"scopes"`

	JWKSCacheHours   int `yaml:"jwks-cache-hours" mapstructure:"jwks-cache-hours"`
	ClockSkewSeconds int `yaml:"clock-skew-seconds" mapstructure:"clock-skew-seconds"`

	// Preset names a provider preset (google, microsoft, keycloak, auth0,
	// okta, github) that fills defaults before validation.
	Preset string `yaml:"preset" mapstructure:"preset"`
}

// EffectiveUsernameClaim returns the configured username claim or "sub".
func (o *OIDCConfig) EffectiveUsernameClaim() string {
	if o.UsernameClaim == "" {
		return "sub"
	}
	return o.UsernameClaim
}

// Validate rejects incomplete OIDC configurations, including presets whose
// placeholders were never substituted.
func (o *OIDCConfig) Validate() error {
	if o.Issuer == "" {
		return fmt.Errorf("oidc: issuer is required")
	}
	for _, placeholder := range []string{"{tenant}", "{realm}", "{domain}"} {
		if strings.Contains(o.Issuer, placeholder) {
			return fmt.Errorf("oidc: issuer %q still contains %s placeholder", o.Issuer, placeholder)
		}
	}
	if o.ClientID == "" {
		return fmt.Errorf("oidc: client-id is required")
	}
	return nil
}
