package store

import (
	"context"
	"errors"

	"github.com/hsafari99/bell/internal/domain"
)

// Common errors returned by the stores
var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrSessionNotFound = errors.New("session not found")
)

// CartStore defines the interface for cart storage operations.
// Implementations return copies; mutating a returned cart does not
// change the stored one until it is written back with Put.
type CartStore interface {
	// Get returns the cart with the given ID and records the access time
	Get(ctx context.Context, cartID string) (*domain.Cart, error)

	// GetByUser returns the cart owned by the given user
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)

	// Put stores the cart, replacing any previous version
	Put(ctx context.Context, cart *domain.Cart) error

	// Delete removes the cart; deleting a missing cart is not an error
	Delete(ctx context.Context, cartID string) error

	// List returns all carts without recording an access
	List(ctx context.Context) ([]*domain.Cart, error)
}

// SessionStore defines the interface for external session handles.
// Sessions are keyed by the owning user; one session per user.
type SessionStore interface {
	// Get returns the live session for the user. An expired session is
	// removed on read and reported as ErrSessionNotFound.
	Get(ctx context.Context, userID string) (*domain.SessionHandle, error)

	// Put stores the session for the user, replacing any previous one
	Put(ctx context.Context, userID string, session *domain.SessionHandle) error

	// Delete removes the session; deleting a missing session is not an error
	Delete(ctx context.Context, userID string) error

	// DeleteExpired removes every expired session and returns how many it removed
	DeleteExpired(ctx context.Context) (int, error)
}
