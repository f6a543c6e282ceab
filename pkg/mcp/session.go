package mcp

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/datazoode/flapi/pkg/auth"
	"github.com/datazoode/flapi/pkg/logger"
)

// DefaultSessionTimeout evicts sessions idle longer than this.
const DefaultSessionTimeout = 30 * time.Minute

// Session is one client's MCP session.
type Session struct {
	ID                 string
	ClientName         string
	ClientVersion      string
	ProtocolVersion    string
	CreatedAt          time.Time
	LastActivity       time.Time
	AuthContext        *auth.AuthContext
	ClientCapabilities ClientCapabilities
}

// Authenticated reports whether the session carries a positive AuthContext.
func (s *Session) Authenticated() bool {
	return s.AuthContext != nil && s.AuthContext.Authenticated
}

// SessionManager is a thread-safe map of live sessions with idle eviction.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration

	now func() time.Time
}

// NewSessionManager creates a manager with the given idle timeout; zero
// means the default.
func NewSessionManager(timeout time.Duration) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionManager{
		sessions: map[string]*Session{},
		timeout:  timeout,
		now:      time.Now,
	}
}

// newSessionID returns 96 bits of entropy as lowercase hex.
func newSessionID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is beyond saving.
		panic(err)
	}
	return hex.EncodeToString(b)
}

// CreateSession registers a new session. ac may be nil for unauthenticated
// clients.
func (m *SessionManager) CreateSession(clientName, clientVersion, protocolVersion string, caps ClientCapabilities, ac *auth.AuthContext) *Session {
	now := m.now()
	s := &Session{
		ID:                 newSessionID(),
		ClientName:         clientName,
		ClientVersion:      clientVersion,
		ProtocolVersion:    protocolVersion,
		CreatedAt:          now,
		LastActivity:       now,
		AuthContext:        ac,
		ClientCapabilities: caps,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	logger.Debugf("created MCP session %s for %s/%s", s.ID, clientName, clientVersion)
	return s
}

// GetSession returns the live session or nil. A session idle past the
// timeout is evicted by this call.
func (m *SessionManager) GetSession(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	if m.now().Sub(s.LastActivity) > m.timeout {
		delete(m.sessions, id)
		logger.Debugf("evicted idle MCP session %s", id)
		return nil
	}
	return s
}

// UpdateActivity bumps the session's last-activity timestamp.
func (m *SessionManager) UpdateActivity(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = m.now()
	}
}

// SetAuthContext replaces a session's auth context, e.g. after a token
// refresh. Performed under the session-map lock so readers see a consistent
// snapshot.
func (m *SessionManager) SetAuthContext(id string, ac *auth.AuthContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.AuthContext = ac
	}
}

// CleanupExpired walks the map and evicts every idle session, returning the
// eviction count.
func (m *SessionManager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) > m.timeout {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		logger.Debugf("evicted %d idle MCP sessions", evicted)
	}
	return evicted
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
