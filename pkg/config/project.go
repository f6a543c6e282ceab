package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ProjectConfig is the top-level flapi.yaml.
type ProjectConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Description string `yaml:"description" mapstructure:"description"`

	// TemplatePath is the directory (local or remote URI) holding SQL
	// templates and endpoint YAML files.
	TemplatePath string `yaml:"template-path" mapstructure:"template-path"`
	EndpointGlob string `yaml:"endpoint-glob" mapstructure:"endpoint-glob"`

	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// FileCache configures the remote-read caching decorator.
	FileCache FileCacheConfig `yaml:"file-cache" mapstructure:"file-cache"`

	// AllowedPathPrefixes confines template and resource reads.
	AllowedPathPrefixes []string `yaml:"allowed-path-prefixes" mapstructure:"allowed-path-prefixes"`

	// EnvWhitelist holds regex patterns for {{env.VAR}} substitution.
	EnvWhitelist []string `yaml:"env-whitelist" mapstructure:"env-whitelist"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address string `yaml:"address" mapstructure:"address"`
	// InsecureAllowHTTP permits plain-HTTP OIDC traffic for development.
	InsecureAllowHTTP bool `yaml:"insecure-allow-http" mapstructure:"insecure-allow-http"`
}

// EngineConfig holds embedded query engine settings.
type EngineConfig struct {
	Path        string            `yaml:"path" mapstructure:"path"` // database file, empty for in-memory
	CacheSchema string            `yaml:"cache-schema" mapstructure:"cache-schema"`
	Settings    map[string]string `yaml:"settings" mapstructure:"settings"`
}

// FileCacheConfig bounds the caching file provider.
type FileCacheConfig struct {
	Enabled       bool  `yaml:"enabled" mapstructure:"enabled"`
	TTLSeconds    int   `yaml:"ttl-seconds" mapstructure:"ttl-seconds"`
	MaxSizeBytes  int64 `yaml:"max-size-bytes" mapstructure:"max-size-bytes"`
	MaxTotalBytes int64 `yaml:"max-total-bytes" mapstructure:"max-total-bytes"`
}

// LoadProject reads flapi.yaml via viper.
func LoadProject(path string) (*ProjectConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("endpoint-glob", "*.yaml")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("engine.cache-schema", "flapi_cache")
	v.SetDefault("file-cache.ttl-seconds", 300)
	v.SetDefault("file-cache.max-size-bytes", 16*1024*1024)
	v.SetDefault("file-cache.max-total-bytes", 256*1024*1024)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read project config %s: %w", path, err)
	}
	var cfg ProjectConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode project config %s: %w", path, err)
	}
	return &cfg, nil
}
