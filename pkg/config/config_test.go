package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"", 0, true},
		{"h", 0, true},
		{"10x", 0, true},
		{"-5m", 0, true},
		{"0s", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestEndpointKeys(t *testing.T) {
	t.Parallel()

	ep := &EndpointConfig{URLPath: "/customers", Method: "get"}
	assert.Equal(t, "GET:/customers", ep.RestKey())

	ep = &EndpointConfig{URLPath: "/customers"}
	assert.Equal(t, "GET:/customers", ep.RestKey(), "method defaults to GET")

	ep = &EndpointConfig{MCPTool: &MCPToolConfig{Name: "customer_lookup"}}
	assert.Empty(t, ep.RestKey())
	assert.Equal(t, "customer_lookup", ep.MCPName())
}

func TestValidatorConfig_PreventsSQLInjection(t *testing.T) {
	t.Parallel()

	v := &ValidatorConfig{Type: "string"}
	assert.True(t, v.PreventsSQLInjection(), "defaults to true")

	f := false
	v.PreventSQLInjection = &f
	assert.False(t, v.PreventsSQLInjection())
}

func TestOIDCConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := &OIDCConfig{Issuer: "https://login.microsoftonline.com/{tenant}/v2.0", ClientID: "app"}
	assert.Error(t, cfg.Validate(), "unsubstituted placeholder must fail")

	cfg = &OIDCConfig{Issuer: "https://accounts.google.com", ClientID: "app"}
	assert.NoError(t, cfg.Validate())

	cfg = &OIDCConfig{Issuer: "https://accounts.google.com"}
	assert.Error(t, cfg.Validate(), "client id is required")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPreprocessor_Include(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.yaml", "auth:\n  enabled: true\n  type: basic\n")
	main := writeFile(t, dir, "endpoint.yaml", "url-path: /x\nauth: '{{include:auth from common.yaml}}'\n")

	p, err := NewExtendedPreprocessor(nil)
	require.NoError(t, err)

	tree, err := p.Process(main)
	require.NoError(t, err)

	auth, ok := tree["auth"].(map[string]any)
	require.True(t, ok, "include should splice the section in")
	assert.Equal(t, true, auth["enabled"])
	assert.Equal(t, "basic", auth["type"])
}

func TestPreprocessor_CircularInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "x: '{{include from b.yaml}}'\n")
	a := filepath.Join(dir, "a.yaml")
	writeFile(t, dir, "b.yaml", "y: '{{include from a.yaml}}'\n")

	p, err := NewExtendedPreprocessor(nil)
	require.NoError(t, err)

	_, err = p.Process(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular include")
}

func TestPreprocessor_ConditionalInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "extra.yaml", "flag: on\n")
	main := writeFile(t, dir, "main.yaml", "extra: '{{include from extra.yaml if env.FLAPI_TEST_COND}}'\n")

	p, err := NewExtendedPreprocessor(nil)
	require.NoError(t, err)

	t.Setenv("FLAPI_TEST_COND", "")
	tree, err := p.Process(main)
	require.NoError(t, err)
	assert.Nil(t, tree["extra"], "unset env condition drops the include")

	t.Setenv("FLAPI_TEST_COND", "1")
	tree, err = p.Process(main)
	require.NoError(t, err)
	assert.NotNil(t, tree["extra"])
}

func TestPreprocessor_EnvWhitelist(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.yaml", "secret: '{{env.FLAPI_DB_PASSWORD}}'\n")

	t.Setenv("FLAPI_DB_PASSWORD", "hunter2")

	p, err := NewExtendedPreprocessor([]string{`^FLAPI_`})
	require.NoError(t, err)
	tree, err := p.Process(main)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", tree["secret"])

	p, err = NewExtendedPreprocessor([]string{`^OTHER_`})
	require.NoError(t, err)
	_, err = p.Process(main)
	assert.Error(t, err, "non-whitelisted variable must fail")
}

func TestDecodeEndpoint(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"url-path":        "/customers",
		"method":          "GET",
		"template-source": "customers.sql",
		"request": []any{
			map[string]any{
				"field-name": "id",
				"field-in":   "query",
				"required":   true,
				"validators": []any{
					map[string]any{"type": "int", "min": 1, "max": 1000000},
				},
			},
		},
		"cache": map[string]any{
			"enabled":     true,
			"cache-table": "customers_cache",
			"schedule":    "15m",
			"cursor":      map[string]any{"column": "updated_at", "type": "timestamp"},
		},
	}

	cfg, err := DecodeEndpoint(tree)
	require.NoError(t, err)
	assert.Equal(t, "GET:/customers", cfg.RestKey())
	require.Len(t, cfg.Request, 1)
	assert.True(t, cfg.Request[0].Required)
	require.Len(t, cfg.Request[0].Validators, 1)
	assert.Equal(t, "int", cfg.Request[0].Validators[0].Type)
	require.NotNil(t, cfg.Cache.Cursor)
	assert.Equal(t, "updated_at", cfg.Cache.Cursor.Column)
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateEndpoint(&EndpointConfig{}), "needs a surface")

	cfg := &EndpointConfig{URLPath: "/x", TemplateSource: "x.sql",
		RateLimit: RateLimitConfig{Enabled: true}}
	assert.Error(t, ValidateEndpoint(cfg), "rate limit needs bounds")

	cfg = &EndpointConfig{URLPath: "/x", TemplateSource: "x.sql",
		Auth: AuthConfig{Enabled: true, Type: "oidc"}}
	assert.Error(t, ValidateEndpoint(cfg), "oidc needs a block")
}
