package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/engine"
	"github.com/datazoode/flapi/pkg/engine/enginetest"
)

type staticFiles struct {
	files map[string][]byte
}

func (s *staticFiles) ReadFile(_ context.Context, path string) ([]byte, error) {
	if c, ok := s.files[path]; ok {
		return c, nil
	}
	return nil, assert.AnError
}

func (s *staticFiles) FileExists(_ context.Context, path string) (bool, error) {
	_, ok := s.files[path]
	return ok, nil
}

func (*staticFiles) ListFiles(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func TestBootstrap(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	require.NoError(t, eng.SecretCatalog().CreateSecret(context.Background(), engine.Secret{
		Name: "corp-users",
		Type: "http",
		Options: map[string]string{
			"path": "https://secrets.internal/corp-users.json",
		},
	}))

	files := &staticFiles{files: map[string][]byte{
		"https://secrets.internal/corp-users.json": []byte(
			`{"users":[{"username":"alice","password":"5f4dcc3b5aa765d61d8327deb882cf99","roles":["reader"]}]}`),
	}}

	eps := []*config.EndpointConfig{
		{URLPath: "/a", Auth: config.AuthConfig{Enabled: true, Type: "basic", FromSecret: "corp-users"}},
		{URLPath: "/b", Auth: config.AuthConfig{Enabled: true, Type: "basic", FromSecret: "corp-users"}},
		{URLPath: "/c"},
	}

	store := NewSecretsStore()
	require.NoError(t, Bootstrap(context.Background(), store, eng, files, eps))

	u, err := store.LookupUser(context.Background(), "corp-users", "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, []string{"reader"}, u.Roles)

	u, err = store.LookupUser(context.Background(), "corp-users", "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)

	// The users were mirrored into the local secrets table.
	var inserts int
	for _, e := range eng.Execs {
		if len(e.Params) > 0 && e.Params["username"] == "alice" {
			inserts++
		}
	}
	assert.Equal(t, 1, inserts, "duplicate secret references bootstrap once")
}

func TestBootstrap_MissingSecretFails(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eps := []*config.EndpointConfig{
		{URLPath: "/a", Auth: config.AuthConfig{Enabled: true, Type: "basic", FromSecret: "ghost"}},
	}
	err := Bootstrap(context.Background(), NewSecretsStore(), eng, &staticFiles{}, eps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
