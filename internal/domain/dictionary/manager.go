package dictionary

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager tracks active curation sessions by ID. Sessions are independent:
// each owns its state store and term sequences.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	resolver *Resolver
	source   RowSource
	notifier Notifier
	logger   zerolog.Logger
}

// NewManager creates a session manager. Every session it creates shares the
// resolver, row source and notifier but nothing else.
func NewManager(resolver *Resolver, source RowSource, notifier Notifier, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		resolver: resolver,
		source:   source,
		notifier: notifier,
		logger:   logger,
	}
}

// Create starts a new curation session.
func (m *Manager) Create() *Session {
	s := NewSession(m.resolver, m.source, m.notifier, m.logger)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s, nil
}

// Delete removes a session and its state.
func (m *Manager) Delete(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
