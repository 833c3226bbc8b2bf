// Package registry tracks the ordered set of terminal tabs and which one is
// active.
package registry

import (
	"fmt"
	"sync"

	"github.com/shellpane/shellpane/internal/shared/id"
	"github.com/shellpane/shellpane/internal/term"
)

// Config controls session creation defaults.
type Config struct {
	// DefaultWorkingDir is the working directory new sessions start in.
	DefaultWorkingDir string
	// Limits applies to every session created by the registry.
	Limits term.Limits
}

// Manager holds sessions in stable tab order. Initialization seeds one
// default session; closing the last remaining session leaves the registry
// empty and the active id unset (auto-creation happens only at startup).
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	sessions []*term.Session
	activeID id.SessionID
	created  int
}

// NewManager creates a registry seeded with one default session.
func NewManager(cfg Config) *Manager {
	if cfg.DefaultWorkingDir == "" {
		cfg.DefaultWorkingDir = "/"
	}
	m := &Manager{cfg: cfg}
	m.Add()
	return m
}

// Add appends a new session, makes it active, and returns it.
func (m *Manager) Add() *term.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.created++
	session := term.NewSession(fmt.Sprintf("Terminal %d", m.created), m.cfg.DefaultWorkingDir, m.cfg.Limits)
	m.sessions = append(m.sessions, session)
	m.activeID = session.ID()
	return session
}

// Close removes a session. Closing the active session activates the first
// remaining tab; the leftmost tab is the fallback because tab order is
// stable. Unknown ids are a no-op.
func (m *Manager) Close(sessionID id.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, session := range m.sessions {
		if session.ID() != sessionID {
			continue
		}
		m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
		if m.activeID == sessionID {
			if len(m.sessions) > 0 {
				m.activeID = m.sessions[0].ID()
			} else {
				m.activeID = ""
			}
		}
		return true
	}
	return false
}

// Select makes a session active. Unknown ids leave the active id unchanged.
func (m *Manager) Select(sessionID id.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, session := range m.sessions {
		if session.ID() == sessionID {
			m.activeID = sessionID
			return true
		}
	}
	return false
}

// Get retrieves a session by id.
func (m *Manager) Get(sessionID id.SessionID) (*term.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, session := range m.sessions {
		if session.ID() == sessionID {
			return session, true
		}
	}
	return nil, false
}

// Active returns the active session, if any.
func (m *Manager) Active() (*term.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, session := range m.sessions {
		if session.ID() == m.activeID {
			return session, true
		}
	}
	return nil, false
}

// ActiveID returns the active session id, or "" when the registry is empty.
func (m *Manager) ActiveID() id.SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// List returns the sessions in tab order.
func (m *Manager) List() []*term.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*term.Session, len(m.sessions))
	copy(sessions, m.sessions)
	return sessions
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
