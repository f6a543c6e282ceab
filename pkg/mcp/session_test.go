package mcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazoode/flapi/pkg/auth"
)

func TestSessionManager_CreateAndGet(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(0)
	s := m.CreateSession("client", "1.0", "2024-11-05", ClientCapabilities{}, nil)

	require.Len(t, s.ID, 24, "96 bits of entropy as hex")
	assert.Equal(t, 1, m.Count())

	got := m.GetSession(s.ID)
	require.NotNil(t, got)
	assert.Equal(t, "client", got.ClientName)
	assert.False(t, got.Authenticated())

	assert.Nil(t, m.GetSession("nope"))
}

func TestSessionManager_IDsAreUnique(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(0)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := m.CreateSession("c", "1", "", ClientCapabilities{}, nil)
		require.False(t, seen[s.ID])
		seen[s.ID] = true
	}
}

func TestSessionManager_TimeoutEviction(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	s := m.CreateSession("client", "1.0", "", ClientCapabilities{}, nil)

	now = now.Add(30 * time.Second)
	assert.NotNil(t, m.GetSession(s.ID))

	// Activity was not updated; past the timeout the session is evicted on
	// lookup.
	now = now.Add(2 * time.Minute)
	assert.Nil(t, m.GetSession(s.ID))
	assert.Equal(t, 0, m.Count(), "eviction happens on the lookup itself")
}

func TestSessionManager_UpdateActivityKeepsAlive(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	s := m.CreateSession("client", "1.0", "", ClientCapabilities{}, nil)

	for i := 0; i < 5; i++ {
		now = now.Add(45 * time.Second)
		m.UpdateActivity(s.ID)
	}
	assert.NotNil(t, m.GetSession(s.ID))
}

func TestSessionManager_CleanupExpired(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	m.CreateSession("a", "1", "", ClientCapabilities{}, nil)
	m.CreateSession("b", "1", "", ClientCapabilities{}, nil)
	now = now.Add(30 * time.Second)
	kept := m.CreateSession("c", "1", "", ClientCapabilities{}, nil)

	now = now.Add(45 * time.Second)
	assert.Equal(t, 2, m.CleanupExpired())
	assert.Equal(t, 1, m.Count())
	assert.NotNil(t, m.GetSession(kept.ID))
}

func TestSessionManager_SetAuthContext(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(0)
	s := m.CreateSession("client", "1.0", "", ClientCapabilities{}, nil)

	m.SetAuthContext(s.ID, &auth.AuthContext{Authenticated: true, Username: "alice"})
	got := m.GetSession(s.ID)
	require.NotNil(t, got)
	assert.True(t, got.Authenticated())
	assert.Equal(t, "alice", got.AuthContext.Username)
}
