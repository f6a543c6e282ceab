package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeEndpoint converts a preprocessed YAML tree into an EndpointConfig.
func DecodeEndpoint(tree map[string]any) (*EndpointConfig, error) {
	raw, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode endpoint tree: %w", err)
	}
	var cfg EndpointConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode endpoint config: %w", err)
	}
	if err := ValidateEndpoint(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateEndpoint enforces structural invariants at load time.
func ValidateEndpoint(cfg *EndpointConfig) error {
	if cfg.URLPath == "" && cfg.MCPName() == "" {
		return fmt.Errorf("endpoint needs a url-path or an MCP name")
	}
	if cfg.TemplateSource == "" {
		return fmt.Errorf("endpoint %s: template-source is required", endpointLabel(cfg))
	}
	if cfg.Cache.Enabled {
		if cfg.Cache.CacheTable == "" {
			return fmt.Errorf("endpoint %s: cache.cache-table is required", endpointLabel(cfg))
		}
		if cfg.Cache.Schedule != "" {
			if _, err := ParseInterval(cfg.Cache.Schedule); err != nil {
				return fmt.Errorf("endpoint %s: %w", endpointLabel(cfg), err)
			}
		}
		if cfg.Cache.Retention.MaxSnapshotAge != "" {
			if _, err := cfg.Cache.Retention.MaxAge(); err != nil {
				return fmt.Errorf("endpoint %s: %w", endpointLabel(cfg), err)
			}
		}
	}
	if cfg.Auth.Enabled {
		switch cfg.Auth.Type {
		case "basic", "bearer":
		case "oidc":
			if cfg.Auth.OIDC == nil {
				return fmt.Errorf("endpoint %s: auth.type oidc requires an oidc block", endpointLabel(cfg))
			}
			if err := cfg.Auth.OIDC.Validate(); err != nil {
				return fmt.Errorf("endpoint %s: %w", endpointLabel(cfg), err)
			}
		default:
			return fmt.Errorf("endpoint %s: unknown auth type %q", endpointLabel(cfg), cfg.Auth.Type)
		}
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.Max <= 0 || cfg.RateLimit.Interval <= 0) {
		return fmt.Errorf("endpoint %s: rate-limit needs positive max and interval", endpointLabel(cfg))
	}
	return nil
}

func endpointLabel(cfg *EndpointConfig) string {
	if cfg.URLPath != "" {
		return cfg.URLPath
	}
	return cfg.MCPName()
}
