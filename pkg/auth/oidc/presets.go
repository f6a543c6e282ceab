package oidc

import (
	"fmt"
	"strings"

	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/logger"
)

// ApplyPreset fills provider defaults into cfg based on cfg.Preset. It
// returns true when the preset was recognized. Issuer templates carrying
// {tenant}/{realm}/{domain} placeholders remain invalid until the operator
// substitutes them; config.OIDCConfig.Validate catches that.
func ApplyPreset(cfg *config.OIDCConfig) bool {
	switch strings.ToLower(cfg.Preset) {
	case "google":
		applyGoogle(cfg)
	case "microsoft":
		applyMicrosoft(cfg)
	case "keycloak":
		applyKeycloak(cfg)
	case "auth0":
		applyAuth0(cfg)
	case "okta":
		applyOkta(cfg)
	case "github":
		applyGitHub(cfg)
	case "":
		return false
	default:
		logger.Warnf("unknown OIDC preset %q, using generic configuration", cfg.Preset)
		return false
	}
	return true
}

func defaultScopes(cfg *config.OIDCConfig) {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "profile", "email"}
	}
}

func applyGoogle(cfg *config.OIDCConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "https://accounts.google.com"
	}
	if cfg.UsernameClaim == "" || cfg.UsernameClaim == "sub" {
		cfg.UsernameClaim = "email"
	}
	if cfg.EmailClaim == "" {
		cfg.EmailClaim = "email"
	}
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}
	defaultScopes(cfg)
}

func applyMicrosoft(cfg *config.OIDCConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "https://login.microsoftonline.com/{tenant}/v2.0"
		logger.Infof("microsoft preset requires tenant substitution in issuer: %s", cfg.Issuer)
	}
	if cfg.UsernameClaim == "" || cfg.UsernameClaim == "sub" {
		cfg.UsernameClaim = "preferred_username"
	}
	if cfg.EmailClaim == "" {
		cfg.EmailClaim = "email"
	}
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}
	defaultScopes(cfg)
}

func applyKeycloak(cfg *config.OIDCConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "https://keycloak.example.com/realms/{realm}"
		logger.Infof("keycloak preset requires realm substitution in issuer: %s", cfg.Issuer)
	}
	if cfg.UsernameClaim == "" || cfg.UsernameClaim == "sub" {
		cfg.UsernameClaim = "preferred_username"
	}
	if cfg.EmailClaim == "" {
		cfg.EmailClaim = "email"
	}
	// Keycloak nests realm roles under realm_access.
	if cfg.RoleClaimPath == "" {
		cfg.RoleClaimPath = "realm_access.roles"
	}
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}
	if cfg.GroupsClaim == "" {
		cfg.GroupsClaim = "groups"
	}
	defaultScopes(cfg)
}

func applyAuth0(cfg *config.OIDCConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "https://{domain}.auth0.com"
		logger.Infof("auth0 preset requires domain substitution in issuer: %s", cfg.Issuer)
	}
	if cfg.UsernameClaim == "" || cfg.UsernameClaim == "sub" {
		cfg.UsernameClaim = "email"
	}
	if cfg.EmailClaim == "" {
		cfg.EmailClaim = "email"
	}
	defaultScopes(cfg)
}

func applyOkta(cfg *config.OIDCConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "https://{domain}.okta.com/oauth2/default"
		logger.Infof("okta preset requires domain substitution in issuer: %s", cfg.Issuer)
	}
	if cfg.UsernameClaim == "" || cfg.UsernameClaim == "sub" {
		cfg.UsernameClaim = "preferred_username"
	}
	if cfg.EmailClaim == "" {
		cfg.EmailClaim = "email"
	}
	if cfg.GroupsClaim == "" {
		cfg.GroupsClaim = "groups"
	}
	defaultScopes(cfg)
}

func applyGitHub(cfg *config.OIDCConfig) {
	if cfg.Issuer == "" {
		cfg.Issuer = "https://token.actions.githubusercontent.com"
	}
	if cfg.UsernameClaim == "" {
		cfg.UsernameClaim = "actor"
	}
	defaultScopes(cfg)
}

// RequiredParameters describes what an operator must supply for a preset.
func RequiredParameters(preset string) string {
	switch strings.ToLower(preset) {
	case "microsoft":
		return "tenant (substitute {tenant} in the issuer URL)"
	case "keycloak":
		return "realm and host (substitute {realm} in the issuer URL)"
	case "auth0":
		return "domain (substitute {domain} in the issuer URL)"
	case "okta":
		return "domain (substitute {domain} in the issuer URL)"
	case "google", "github", "":
		return ""
	default:
		return fmt.Sprintf("unknown preset %q", preset)
	}
}
