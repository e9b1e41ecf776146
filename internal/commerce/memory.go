package commerce

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hsafari99/bell/internal/domain"
)

// ProviderName identifies the in-process provider on session handles
const ProviderName = "memory"

// DefaultSessionTTL is how long a remote session is valid without renewal
const DefaultSessionTTL = 30 * time.Minute

// memSession is the provider's internal session record
type memSession struct {
	session Session
	items   map[int64]domain.LineItem // productID -> item
}

// MemoryProvider implements Provider entirely in-process. It stands in
// for the real commerce backend and behaves like one: sessions expire,
// checkout consumes the session, unknown sessions are rejected.
type MemoryProvider struct {
	mu       sync.Mutex
	sessions map[string]*memSession // sessionID -> session
	ttl      time.Duration
}

// NewMemoryProvider creates an in-process commerce provider.
// A non-positive ttl falls back to DefaultSessionTTL.
func NewMemoryProvider(ttl time.Duration) *MemoryProvider {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryProvider{
		sessions: make(map[string]*memSession),
		ttl:      ttl,
	}
}

// CreateSession opens a new remote session for the user, seeded with
// the given items
func (p *MemoryProvider) CreateSession(ctx context.Context, userID string, items []domain.LineItem) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	s := &memSession{
		session: Session{
			ID:           uuid.New().String(),
			RemoteCartID: uuid.New().String(),
			UserID:       userID,
			Provider:     ProviderName,
			CreatedAt:    now,
			ExpiresAt:    now.Add(p.ttl),
		},
		items: make(map[int64]domain.LineItem, len(items)),
	}
	for _, item := range items {
		s.items[item.ProductID] = item
	}
	p.sessions[s.session.ID] = s

	return p.snapshot(s), nil
}

// AddItem puts the item into the session, replacing any previous entry
// for the same product
func (p *MemoryProvider) AddItem(ctx context.Context, sessionID string, item domain.LineItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.live(sessionID)
	if err != nil {
		return err
	}
	s.items[item.ProductID] = item
	return nil
}

// RemoveItem removes the product from the session. Removing a product
// that is not there is a no-op, which keeps retries harmless.
func (p *MemoryProvider) RemoveItem(ctx context.Context, sessionID string, productID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.live(sessionID)
	if err != nil {
		return err
	}
	delete(s.items, productID)
	return nil
}

// GetSession returns a snapshot of the session with items in product order
func (p *MemoryProvider) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.live(sessionID)
	if err != nil {
		return nil, err
	}
	return p.snapshot(s), nil
}

// ValidateSession reports whether the session is still usable
func (p *MemoryProvider) ValidateSession(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.live(sessionID)
	return err
}

// Checkout finalizes the session and consumes it
func (p *MemoryProvider) Checkout(ctx context.Context, sessionID string) (*CheckoutOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.live(sessionID)
	if err != nil {
		return nil, err
	}

	snap := p.snapshot(s)
	total := 0.0
	for _, item := range snap.Items {
		total += item.Subtotal()
	}

	// The session is spent whether or not the caller keeps the outcome.
	delete(p.sessions, sessionID)

	return &CheckoutOutcome{
		OrderID: uuid.New().String(),
		Items:   snap.Items,
		Total:   total,
		Status:  OutcomeCompleted,
	}, nil
}

// ExpireSession forces the session past its deadline. Used by tests and
// operational tooling to exercise expiry paths.
func (p *MemoryProvider) ExpireSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, exists := p.sessions[sessionID]; exists {
		s.session.ExpiresAt = time.Now().Add(-time.Second)
	}
}

// Len returns the number of live and expired sessions still held
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// live looks up a session and enforces expiry. Callers must hold mu.
func (p *MemoryProvider) live(sessionID string) (*memSession, error) {
	s, exists := p.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(s.session.ExpiresAt) {
		delete(p.sessions, sessionID)
		return nil, ErrSessionExpired
	}
	return s, nil
}

// snapshot copies the session with items sorted by product ID.
// Callers must hold mu.
func (p *MemoryProvider) snapshot(s *memSession) *Session {
	out := s.session
	out.Items = make([]domain.LineItem, 0, len(s.items))
	for _, item := range s.items {
		out.Items = append(out.Items, item)
	}
	sort.Slice(out.Items, func(i, j int) bool {
		return out.Items[i].ProductID < out.Items[j].ProductID
	})
	return &out
}
