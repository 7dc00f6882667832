package repository

import (
	"context"
	"sync"

	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/ports"
)

// MemorySessionStorage keeps sessions in process memory. It is ready immediately
// and loses everything on restart.
type MemorySessionStorage struct {
	sessions map[string]domain.Session
	mu       sync.RWMutex
	ready    *readyGate
}

var _ ports.SessionStorage = (*MemorySessionStorage)(nil)

// NewMemorySessionStorage creates an empty in-memory storage
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{
		sessions: make(map[string]domain.Session),
		ready:    readyNow(),
	}
}

// Ready returns immediately unless the storage was disconnected
func (s *MemorySessionStorage) Ready(ctx context.Context) error {
	return s.ready.Wait(ctx)
}

// StoreSession stores a copy of the session
func (s *MemorySessionStorage) StoreSession(ctx context.Context, session *domain.Session) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = copySession(session)
	return true, nil
}

// LoadSession retrieves a copy of a session by ID
func (s *MemorySessionStorage) LoadSession(ctx context.Context, id string) (*domain.Session, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	loaded := copySession(&session)
	return &loaded, nil
}

// DeleteSession removes a session by ID
func (s *MemorySessionStorage) DeleteSession(ctx context.Context, id string) (bool, error) {
	return s.DeleteSessions(ctx, []string{id})
}

// DeleteSessions removes all sessions with the given IDs
func (s *MemorySessionStorage) DeleteSessions(ctx context.Context, ids []string) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.sessions, id)
	}
	return true, nil
}

// FindSessionsByShop returns copies of every session of shop
func (s *MemorySessionStorage) FindSessionsByShop(ctx context.Context, shop string) ([]*domain.Session, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := []*domain.Session{}
	for _, session := range s.sessions {
		if session.Shop == shop {
			found := copySession(&session)
			sessions = append(sessions, &found)
		}
	}
	return sessions, nil
}

// Disconnect drops all sessions
func (s *MemorySessionStorage) Disconnect(ctx context.Context) error {
	s.ready.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]domain.Session)
	return nil
}

func copySession(session *domain.Session) domain.Session {
	c := *session
	if session.Expires != nil {
		c.Expires = domain.ExpiresAt(*session.Expires)
	}
	if session.OnlineAccessInfo != nil {
		info := *session.OnlineAccessInfo
		c.OnlineAccessInfo = &info
	}
	return c
}
