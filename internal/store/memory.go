// Package store holds the session store drivers: memory, mongo and redis.
package store

import (
	"context"
	"sync"

	"github.com/dkeye/ucode/internal/domain"
)

// MemoryStore keeps documents in process. Used in dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[domain.SessionID]*domain.Session
	byHost map[domain.Identity]domain.SessionID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[domain.SessionID]*domain.Session),
		byHost: make(map[domain.Identity]domain.SessionID),
	}
}

func (m *MemoryStore) Get(_ context.Context, id domain.SessionID) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) FindByHost(_ context.Context, host domain.Identity) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byHost[host]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return m.byID[id].Clone(), nil
}

func (m *MemoryStore) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byHost[s.Host]; ok {
		return domain.ErrHostTaken
	}
	m.byID[s.ID] = s.Clone()
	m.byHost[s.Host] = s.ID
	return nil
}

func (m *MemoryStore) Update(_ context.Context, id domain.SessionID, patch domain.SessionPatch) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	patch.Apply(s)
	return s.Clone(), nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
