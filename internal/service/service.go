// Package service holds the cart operations and the checkout
// orchestration built on top of the stores, the commerce provider and
// the tax calculator. All mutations for one user run through the
// sequencer, which is the only concurrency control in the system.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hsafari99/bell/internal/commerce"
	"github.com/hsafari99/bell/internal/domain"
	"github.com/hsafari99/bell/internal/sequencer"
	"github.com/hsafari99/bell/internal/store"
	"github.com/hsafari99/bell/internal/tax"
)

// DefaultCheckoutGrace is how long an in_progress checkout blocks a new
// attempt before it is treated as abandoned and taken over.
const DefaultCheckoutGrace = 60 * time.Second

type CartService struct {
	seq      *sequencer.Sequencer
	carts    store.CartStore
	sessions store.SessionStore
	provider commerce.Provider
	tax      tax.Calculator
	sfg      singleflight.Group // Collapses concurrent summary reads per user

	checkoutGrace time.Duration
}

// Option configures a CartService.
type Option func(*CartService)

// WithCheckoutGrace overrides the abandoned-checkout takeover window.
func WithCheckoutGrace(d time.Duration) Option {
	return func(s *CartService) {
		if d > 0 {
			s.checkoutGrace = d
		}
	}
}

func NewCartService(
	seq *sequencer.Sequencer,
	carts store.CartStore,
	sessions store.SessionStore,
	provider commerce.Provider,
	calc tax.Calculator,
	opts ...Option,
) *CartService {
	s := &CartService{
		seq:           seq,
		carts:         carts,
		sessions:      sessions,
		provider:      provider,
		tax:           calc,
		checkoutGrace: DefaultCheckoutGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadActive returns the user's cart, treating a checked-out cart as
// already destroyed even if its deletion is still in flight. Only the
// checkout path itself reads completed carts (for the cached replay).
func (s *CartService) loadActive(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.CheckoutStatus == domain.CheckoutCompleted {
		return nil, store.ErrCartNotFound
	}
	return cart, nil
}

// getOrCreate loads the user's active cart, creating an empty one on
// first access or after a completed checkout. Must run inside the
// user's sequencer slot.
func (s *CartService) getOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.loadActive(ctx, userID)
	if errors.Is(err, store.ErrCartNotFound) {
		cart = domain.NewCart(uuid.New().String(), userID, time.Now())
		if errPut := s.carts.Put(ctx, cart); errPut != nil {
			return nil, errPut
		}
		log.Printf("created cart %s for user %s", cart.ID, userID)
		return cart, nil
	}
	return cart, err
}
