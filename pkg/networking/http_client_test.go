package networking

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHttpClientBuilder(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder()
	require.NotNil(t, builder)
	assert.False(t, builder.allowPrivateIP)
	assert.False(t, builder.allowInsecure)
}

func TestHttpClientBuilder_WithCABundle(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder()
	result := builder.WithCABundle("/path/to/ca.pem")
	assert.Same(t, builder, result)
	assert.Equal(t, "/path/to/ca.pem", builder.caBundlePath)
}

func TestHttpClientBuilder_WithPrivateIPs(t *testing.T) {
	t.Parallel()

	builder := NewHttpClientBuilder().WithPrivateIPs(true)
	assert.True(t, builder.allowPrivateIP)
}

func TestHttpClientBuilder_Build(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		client, err := NewHttpClientBuilder().Build()
		require.NoError(t, err)
		assert.Equal(t, RequestTimeout, client.Timeout)
	})

	t.Run("missing CA bundle fails", func(t *testing.T) {
		t.Parallel()
		_, err := NewHttpClientBuilder().WithCABundle("/nonexistent/ca.pem").Build()
		assert.Error(t, err)
	})

	t.Run("invalid CA bundle fails", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))
		_, err := NewHttpClientBuilder().WithCABundle(path).Build()
		assert.Error(t, err)
	})

	t.Run("token file injected as bearer", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(path, []byte("secret-token\n"), 0o600))

		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
		}))
		defer srv.Close()

		client, err := NewHttpClientBuilder().WithTokenFromFile(path).Build()
		require.NoError(t, err)

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "Bearer secret-token", gotAuth)
	})
}

func TestIsLocalhost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"localhost:8080", true},
		{"127.0.0.1", true},
		{"127.0.0.1:9000", true},
		{"::1", true},
		{"example.com", false},
		{"10.0.0.1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsLocalhost(tt.host), tt.host)
	}
}

func TestValidateEndpointURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"valid https", "https://issuer.example.com/token", false},
		{"http localhost", "http://localhost:8080/token", false},
		{"http non-localhost", "http://issuer.example.com/token", true},
		{"bad scheme", "ftp://issuer.example.com", true},
		{"missing host", "https://", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateEndpointURL(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
