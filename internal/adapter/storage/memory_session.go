package storage

import (
	"context"
	"sync"

	"github.com/Randon971205/pokemon-inventory-bot/internal/core/domain"
)

// MemorySessionStore keeps sessions for the life of the process.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session)}
}

func (m *MemorySessionStore) GetSession(ctx context.Context, userID string) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return domain.Session{UserID: userID}, nil
	}
	return cloneSession(sess), nil
}

func (m *MemorySessionStore) SaveSession(ctx context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.UserID] = cloneSession(session)
	return nil
}

// drafts are pointers; never share one between caller and store
func cloneSession(s domain.Session) domain.Session {
	if s.Draft != nil {
		d := *s.Draft
		s.Draft = &d
	}
	return s
}
