package store

import (
	"context"
	"sync"

	"github.com/hsafari99/bell/internal/domain"
)

// MemorySessionStore implements SessionStore with in-memory storage.
// Expiry is enforced lazily on read and in bulk by DeleteExpired.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.SessionHandle // userID -> session
}

// NewMemorySessionStore creates a new in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*domain.SessionHandle),
	}
}

// Get returns the live session for the user. A session past its expiry
// is dropped on the spot and reported as missing, so callers never see
// a dead handle.
func (s *MemorySessionStore) Get(ctx context.Context, userID string) (*domain.SessionHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[userID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		delete(s.sessions, userID)
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Put stores the session for the user, replacing any previous one
func (s *MemorySessionStore) Put(ctx context.Context, userID string, session *domain.SessionHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[userID] = session.Clone()
	return nil
}

// Delete removes the session for the user
func (s *MemorySessionStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// DeleteExpired removes every expired session and returns the count
func (s *MemorySessionStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
