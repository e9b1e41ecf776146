package store

import (
	"context"
	"sync"
	"time"

	"github.com/hsafari99/bell/internal/domain"
)

// MemoryCartStore implements CartStore with in-memory storage.
// Carts live for the lifetime of the process.
type MemoryCartStore struct {
	mu     sync.RWMutex
	carts  map[string]*domain.Cart // cartID -> cart
	byUser map[string]string       // userID -> cartID
}

// NewMemoryCartStore creates a new in-memory cart store
func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{
		carts:  make(map[string]*domain.Cart),
		byUser: make(map[string]string),
	}
}

// Get returns the cart with the given ID and bumps its last access time
func (s *MemoryCartStore) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return nil, ErrCartNotFound
	}
	cart.LastAccessedAt = time.Now()
	return cart.Clone(), nil
}

// GetByUser returns the cart owned by the given user and bumps its last access time
func (s *MemoryCartStore) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cartID, exists := s.byUser[userID]
	if !exists {
		return nil, ErrCartNotFound
	}
	cart := s.carts[cartID]
	cart.LastAccessedAt = time.Now()
	return cart.Clone(), nil
}

// Put stores the cart, replacing any previous version
func (s *MemoryCartStore) Put(ctx context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cart.Clone()
	s.carts[stored.ID] = stored
	s.byUser[stored.UserID] = stored.ID
	return nil
}

// Delete removes the cart and its user index entry
func (s *MemoryCartStore) Delete(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return nil
	}
	delete(s.carts, cartID)
	if s.byUser[cart.UserID] == cartID {
		delete(s.byUser, cart.UserID)
	}
	return nil
}

// List returns a snapshot of all carts. Listing does not count as an
// access, so the sweeper can read idle times without refreshing them.
func (s *MemoryCartStore) List(ctx context.Context) ([]*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Cart, 0, len(s.carts))
	for _, cart := range s.carts {
		result = append(result, cart.Clone())
	}
	return result, nil
}

// Len returns the number of stored carts
func (s *MemoryCartStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.carts)
}
