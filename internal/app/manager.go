package app

import (
	"fmt"
	"sync"
)

// SessionManager owns the set of live sessions, keyed by session ID.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	deps SessionDeps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager whose sessions share deps.
func NewSessionManager(deps SessionDeps) *SessionManager {
	return &SessionManager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Open creates and starts a session. Returns an error when the ID is already
// in use.
func (m *SessionManager) Open(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return nil, fmt.Errorf("app: session %q already open", id)
	}
	s := newSession(id, m.deps)
	m.sessions[id] = s
	m.deps.Metrics.ActiveSessions.Add(s.ctx, 1)
	return s, nil
}

// Get returns the session with the given ID.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close stops the session with the given ID. Unknown IDs are ignored.
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.deps.Metrics.ActiveSessions.Add(s.ctx, -1)
	s.Close()
}

// CloseAll stops every live session. Called during shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.deps.Metrics.ActiveSessions.Add(s.ctx, -1)
		s.Close()
	}
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
