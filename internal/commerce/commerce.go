// Package commerce defines the external commerce capability the cart
// service is built against, plus an in-process implementation of it.
package commerce

import (
	"context"
	"errors"
	"time"

	"github.com/hsafari99/bell/internal/domain"
)

// Common errors returned by providers
var (
	ErrSessionNotFound = errors.New("commerce session not found")
	ErrSessionExpired  = errors.New("commerce session has expired")
)

// Outcome statuses reported by Checkout
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Session is the provider-side view of a shopping session
type Session struct {
	ID           string
	RemoteCartID string
	UserID       string
	Provider     string
	Items        []domain.LineItem
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// CheckoutOutcome is the provider's answer to a checkout request.
// A failed business outcome is reported here with Status and Error;
// transport and session problems come back as Go errors instead.
type CheckoutOutcome struct {
	OrderID string
	Items   []domain.LineItem
	Total   float64
	Status  string
	Error   string
}

// Provider is the external commerce capability.
// All operations are addressed by the provider's own session ID.
type Provider interface {
	// CreateSession opens a new remote session for the user, seeded
	// with the given items
	CreateSession(ctx context.Context, userID string, items []domain.LineItem) (*Session, error)

	// AddItem puts the item into the remote session, replacing any
	// previous entry for the same product
	AddItem(ctx context.Context, sessionID string, item domain.LineItem) error

	// RemoveItem removes the product from the remote session.
	// Removing a product that is not there is not an error.
	RemoveItem(ctx context.Context, sessionID string, productID int64) error

	// GetSession returns the current remote session state
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// ValidateSession reports whether the session is still usable.
	// Returns nil for a live session, ErrSessionExpired or
	// ErrSessionNotFound otherwise.
	ValidateSession(ctx context.Context, sessionID string) error

	// Checkout finalizes the session. On success the session is
	// consumed and cannot be used again.
	Checkout(ctx context.Context, sessionID string) (*CheckoutOutcome, error)
}
