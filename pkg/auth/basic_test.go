package auth

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/datazoode/flapi/pkg/config"
)

func basicHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestBasicAuth_MD5StoredPassword(t *testing.T) {
	t.Parallel()

	cfg := &config.AuthConfig{
		Enabled: true,
		Type:    "basic",
		Users: []config.UserConfig{
			// MD5 of "password".
			{Username: "alice", Password: "5f4dcc3b5aa765d61d8327deb882cf99", Roles: []string{"reader"}},
		},
	}
	b := NewBasicAuthenticator(cfg, nil)

	ac := b.Authenticate(context.Background(), "Basic YWxpY2U6cGFzc3dvcmQ=")
	require.NotNil(t, ac)
	assert.True(t, ac.Authenticated)
	assert.Equal(t, "alice", ac.Username)
	assert.Equal(t, []string{"reader"}, ac.Roles)
	assert.Equal(t, "basic", ac.AuthType)

	assert.Nil(t, b.Authenticate(context.Background(), "Basic YWxpY2U6d3Jvbmc="),
		"wrong password is rejected")
}

func TestBasicAuth_PlaintextStoredPassword(t *testing.T) {
	t.Parallel()

	cfg := &config.AuthConfig{
		Users: []config.UserConfig{{Username: "bob", Password: "hunter2"}},
	}
	b := NewBasicAuthenticator(cfg, nil)

	assert.NotNil(t, b.Authenticate(context.Background(), basicHeader("bob", "hunter2")))
	assert.Nil(t, b.Authenticate(context.Background(), basicHeader("bob", "other")))
}

func TestBasicAuth_BcryptStoredPassword(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	off := false
	cfg := &config.AuthConfig{
		Users:             []config.UserConfig{{Username: "carol", Password: string(hash)}},
		AllowLegacyHashes: &off,
	}
	b := NewBasicAuthenticator(cfg, nil)

	assert.NotNil(t, b.Authenticate(context.Background(), basicHeader("carol", "s3cret")),
		"bcrypt works with legacy hashes disabled")
	assert.Nil(t, b.Authenticate(context.Background(), basicHeader("carol", "wrong")))
}

func TestBasicAuth_LegacyDisabledRejectsMD5(t *testing.T) {
	t.Parallel()

	off := false
	cfg := &config.AuthConfig{
		Users:             []config.UserConfig{{Username: "alice", Password: "5f4dcc3b5aa765d61d8327deb882cf99"}},
		AllowLegacyHashes: &off,
	}
	b := NewBasicAuthenticator(cfg, nil)
	assert.Nil(t, b.Authenticate(context.Background(), basicHeader("alice", "password")))
}

func TestBasicAuth_MalformedHeaders(t *testing.T) {
	t.Parallel()

	cfg := &config.AuthConfig{Users: []config.UserConfig{{Username: "a", Password: "b"}}}
	b := NewBasicAuthenticator(cfg, nil)

	for _, h := range []string{
		"",
		"Bearer abc",
		"Basic !!!not-base64!!!",
		"Basic " + base64.StdEncoding.EncodeToString([]byte("no-colon")),
	} {
		assert.Nil(t, b.Authenticate(context.Background(), h), h)
	}
}

type staticUserStore struct {
	users map[string]config.UserConfig
}

func (s *staticUserStore) LookupUser(_ context.Context, _, username string) (*config.UserConfig, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func TestBasicAuth_ExternalStoreFallback(t *testing.T) {
	t.Parallel()

	cfg := &config.AuthConfig{
		FromSecret: "corp-users",
		Users:      []config.UserConfig{{Username: "inline", Password: "pw"}},
	}
	store := &staticUserStore{users: map[string]config.UserConfig{
		"external": {Username: "external", Password: "epw", Roles: []string{"ops"}},
	}}
	b := NewBasicAuthenticator(cfg, store)

	ac := b.Authenticate(context.Background(), basicHeader("external", "epw"))
	require.NotNil(t, ac)
	assert.Equal(t, []string{"ops"}, ac.Roles)

	// Inline users are tried first and win on name match.
	assert.NotNil(t, b.Authenticate(context.Background(), basicHeader("inline", "pw")))
}
