package engine

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"flapi_cache"`, quoteIdent("flapi_cache"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}

func TestNamedArgs(t *testing.T) {
	t.Parallel()

	assert.Nil(t, namedArgs(nil))
	assert.Nil(t, namedArgs(map[string]any{}))

	args := namedArgs(map[string]any{"id": 42})
	require.Len(t, args, 1)
	named, ok := args[0].(sql.NamedArg)
	require.True(t, ok)
	assert.Equal(t, "id", named.Name)
	assert.Equal(t, 42, named.Value)
}
