// Package config defines the configuration model the gateway compiles into
// live endpoints, and the loading machinery around it.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig describes one REST and/or MCP endpoint backed by a SQL
// template. Instances are immutable once published to the repository; reloads
// build a fresh set and swap it atomically.
type EndpointConfig struct {
	URLPath        string   `yaml:"url-path" mapstructure:"url-path"`
	Method         string   `yaml:"method" mapstructure:"method"`
	TemplateSource string   `yaml:"template-source" mapstructure:"template-source"`
	Connection     []string `yaml:"connection" mapstructure:"connection"`

	Request []RequestFieldConfig `yaml:"request" mapstructure:"request"`

	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit RateLimitConfig `yaml:"rate-limit" mapstructure:"rate-limit"`

	MCPTool     *MCPToolConfig     `yaml:"mcp-tool" mapstructure:"mcp-tool"`
	MCPResource *MCPResourceConfig `yaml:"mcp-resource" mapstructure:"mcp-resource"`
	MCPPrompt   *MCPPromptConfig   `yaml:"mcp-prompt" mapstructure:"mcp-prompt"`
}

// RestKey returns the repository key for the REST index, or "" when the
// endpoint has no REST surface.
func (e *EndpointConfig) RestKey() string {
	if e.URLPath == "" {
		return ""
	}
	method := e.Method
	if method == "" {
		method = "GET"
	}
	return strings.ToUpper(method) + ":" + e.URLPath
}

// MCPName returns the endpoint's MCP name, or "" when it has none.
func (e *EndpointConfig) MCPName() string {
	switch {
	case e.MCPTool != nil && e.MCPTool.Name != "":
		return e.MCPTool.Name
	case e.MCPResource != nil && e.MCPResource.Name != "":
		return e.MCPResource.Name
	case e.MCPPrompt != nil && e.MCPPrompt.Name != "":
		return e.MCPPrompt.Name
	}
	return ""
}

// FieldByName returns the request field with the given name.
func (e *EndpointConfig) FieldByName(name string) (*RequestFieldConfig, bool) {
	for i := range e.Request {
		if e.Request[i].FieldName == name {
			return &e.Request[i], true
		}
	}
	return nil, false
}

// MCPToolConfig exposes the endpoint as an MCP tool.
type MCPToolConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Description string `yaml:"description" mapstructure:"description"`
}

// MCPResourceConfig exposes the endpoint as an MCP resource under
// flapi://<name>.
type MCPResourceConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Description string `yaml:"description" mapstructure:"description"`
	MimeType    string `yaml:"mime-type" mapstructure:"mime-type"`
}

// MCPPromptConfig exposes the endpoint as an MCP prompt template.
type MCPPromptConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Description string `yaml:"description" mapstructure:"description"`
	Template    string `yaml:"template" mapstructure:"template"`
}

// RequestFieldConfig describes one request parameter of an endpoint.
type RequestFieldConfig struct {
	FieldName   string            `yaml:"field-name" mapstructure:"field-name"`
	FieldIn     string            `yaml:"field-in" mapstructure:"field-in"` // query, path, header, body
	Description string            `yaml:"description" mapstructure:"description"`
	Required    bool              `yaml:"required" mapstructure:"required"`
	Default     string            `yaml:"default" mapstructure:"default"`
	Validators  []ValidatorConfig `yaml:"validators" mapstructure:"validators"`
}

// ValidatorConfig is one validation rule attached to a request field. The
// Type tag selects the variant; unused bounds stay at their zero values.
type ValidatorConfig struct {
	Type string `yaml:"type" mapstructure:"type"` // string, int, email, uuid, date, time, enum

	// string / int bounds. For strings these are lengths.
	Min int `yaml:"min" mapstructure:"min"`
	Max int `yaml:"max" mapstructure:"max"`

	// string
	Regex string `yaml:"regex" mapstructure:"regex"`

	// date / time bounds, compared component-wise as canonical strings.
	MinDate string `yaml:"min-date" mapstructure:"min-date"`
	MaxDate string `yaml:"max-date" mapstructure:"max-date"`
	MinTime string `yaml:"min-time" mapstructure:"min-time"`
	MaxTime string `yaml:"max-time" mapstructure:"max-time"`

	// enum
	AllowedValues []string `yaml:"allowed-values" mapstructure:"allowed-values"`

	// PreventSQLInjection defaults to true; it is stored as a pointer so the
	// loader can tell "absent" from "explicitly false".
	PreventSQLInjection *bool `yaml:"prevent-sql-injection" mapstructure:"prevent-sql-injection"`
}

// PreventsSQLInjection reports the effective flag value (default true).
func (v *ValidatorConfig) PreventsSQLInjection() bool {
	return v.PreventSQLInjection == nil || *v.PreventSQLInjection
}

// CacheConfig configures the per-endpoint materialized cache.
type CacheConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	CacheCatalog   string `yaml:"cache-catalog" mapstructure:"cache-catalog"`
	CacheSchema    string `yaml:"cache-schema" mapstructure:"cache-schema"`
	CacheTable     string `yaml:"cache-table" mapstructure:"cache-table"`
	TemplateSource string `yaml:"template-source" mapstructure:"template-source"`
	Schedule       string `yaml:"schedule" mapstructure:"schedule"`

	Cursor      *CursorConfig `yaml:"cursor" mapstructure:"cursor"`
	PrimaryKeys []string      `yaml:"primary-keys" mapstructure:"primary-keys"`

	Retention RetentionConfig `yaml:"retention" mapstructure:"retention"`
}

// CursorConfig bookmarks incremental refresh on a monotone column.
type CursorConfig struct {
	Column string `yaml:"column" mapstructure:"column"`
	Type   string `yaml:"type" mapstructure:"type"`
}

// RetentionConfig bounds historical snapshots by count or age.
type RetentionConfig struct {
	KeepLastSnapshots int    `yaml:"keep-last-snapshots" mapstructure:"keep-last-snapshots"`
	MaxSnapshotAge    string `yaml:"max-snapshot-age" mapstructure:"max-snapshot-age"`
}

// MaxAge parses MaxSnapshotAge using the schedule interval syntax.
func (r *RetentionConfig) MaxAge() (time.Duration, error) {
	if r.MaxSnapshotAge == "" {
		return 0, nil
	}
	return ParseInterval(r.MaxSnapshotAge)
}

// ParseInterval parses "<integer><s|m|h|d>" into a duration.
func ParseInterval(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	switch s[len(s)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid interval unit in %q", s)
	}
}

// RateLimitConfig configures the per-endpoint limiter.
type RateLimitConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Max      int    `yaml:"max" mapstructure:"max"`
	Interval int    `yaml:"interval" mapstructure:"interval"` // seconds
	Strategy string `yaml:"strategy" mapstructure:"strategy"` // bucket (default) or window
}
