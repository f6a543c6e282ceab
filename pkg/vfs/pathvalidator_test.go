package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathValidator_Traversal(t *testing.T) {
	t.Parallel()

	v := NewPathValidator()

	rejected := []string{
		"..",
		"../etc/passwd",
		"data/../../etc/passwd",
		"data/..",
		"%2e%2e/secret",         // single-encoded ..
		"%252e%252e/secret",     // double-encoded ..
		"a/%2e%2e/b",
		"..\\windows\\system32", // backslash separators
	}
	for _, p := range rejected {
		_, err := v.Validate(p, "/base")
		assert.Error(t, err, p)
	}
}

func TestPathValidator_DotsInsideSegmentsPass(t *testing.T) {
	t.Parallel()

	v := NewPathValidator()

	out, err := v.Validate("/data/file..name.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "/data/file..name.sql", out)

	out, err = v.Validate("/data/..hidden", "")
	require.NoError(t, err)
	assert.Equal(t, "/data/..hidden", out)
}

func TestPathValidator_SchemeWhitelist(t *testing.T) {
	t.Parallel()

	v := NewPathValidator()

	out, err := v.Validate("https://example.com/data.csv", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/data.csv", out)

	_, err = v.Validate("s3://bucket/key", "")
	assert.Error(t, err, "s3 is not on the default whitelist")

	v.AllowedSchemes = append(v.AllowedSchemes, "s3")
	_, err = v.Validate("s3://bucket/key", "")
	assert.NoError(t, err)
}

func TestPathValidator_RelativeNeedsBase(t *testing.T) {
	t.Parallel()

	v := NewPathValidator()

	_, err := v.Validate("queries/q.sql", "")
	assert.Error(t, err)

	out, err := v.Validate("queries/q.sql", "/srv/templates")
	require.NoError(t, err)
	assert.Equal(t, "/srv/templates/queries/q.sql", out)
}

func TestPathValidator_PrefixConfinement(t *testing.T) {
	t.Parallel()

	v := NewPathValidator()
	v.AllowedPrefixes = []string{"/srv/templates"}

	_, err := v.Validate("/srv/templates/q.sql", "")
	assert.NoError(t, err)

	_, err = v.Validate("/etc/passwd", "")
	assert.Error(t, err)
}

func TestPathValidator_Normalization(t *testing.T) {
	t.Parallel()

	v := NewPathValidator()

	out, err := v.Validate("/a//b\\c//d", "")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c/d", out)
}

func TestRouter_SchemeDispatch(t *testing.T) {
	t.Parallel()

	local := newCountingProvider()
	local.set("/x", []byte("local"))
	remote := newCountingProvider()
	remote.set("s3://b/x", []byte("remote"))

	r := NewRouter(local)
	r.Register("s3", remote)

	out, err := r.ReadFile(t.Context(), "/x")
	require.NoError(t, err)
	assert.Equal(t, []byte("local"), out)

	out, err = r.ReadFile(t.Context(), "s3://b/x")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote"), out)

	_, err = r.ReadFile(t.Context(), "gs://b/x")
	assert.Error(t, err, "unregistered scheme")
}

func TestIsRemotePath(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRemotePath("s3://b/k"))
	assert.True(t, IsRemotePath("gs://b/k"))
	assert.True(t, IsRemotePath("az://c/b"))
	assert.True(t, IsRemotePath("azure://c/b"))
	assert.True(t, IsRemotePath("https://h/p"))
	assert.False(t, IsRemotePath("/local/path"))
	assert.False(t, IsRemotePath("file:///local/path"))
}
