package typeconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConverters(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	tests := []struct {
		typeName string
		in       any
		want     any
	}{
		{"INTEGER", int32(7), int64(7)},
		{"BIGINT", int64(9000000000), int64(9000000000)},
		{"UTINYINT", uint8(255), int64(255)},
		{"DOUBLE", 1.5, 1.5},
		{"FLOAT", float32(2), 2.0},
		{"BOOLEAN", true, true},
		{"VARCHAR", "hello", "hello"},
		{"VARCHAR", []byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		conv, ok := r.Lookup(tt.typeName)
		require.True(t, ok, tt.typeName)
		assert.Equal(t, tt.want, conv(tt.in), tt.typeName)
	}
}

func TestLookupUnknownType(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, ok := r.Lookup("GEOMETRY")
	assert.False(t, ok)
}

func TestRegisterOverride(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("INTEGER", func(any) any { return "overridden" })
	conv, ok := r.Lookup("INTEGER")
	require.True(t, ok)
	assert.Equal(t, "overridden", conv(int32(1)))
}

func TestDefaultIsSingleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, Default(), Default())
}
