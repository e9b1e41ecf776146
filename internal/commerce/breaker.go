package commerce

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hsafari99/bell/internal/domain"
)

// BreakerProvider wraps a Provider with a circuit breaker so a
// misbehaving commerce backend degrades fast instead of hanging every
// cart operation behind it.
type BreakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerProvider wraps the provider with a circuit breaker.
// Session lifecycle errors (expired, not found) count as successes:
// they describe the session, not the provider's health.
func NewBreakerProvider(inner Provider) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        "commerce-provider",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrSessionExpired) ||
				errors.Is(err, ErrSessionNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %q: %s -> %s", name, from, to)
		},
	}

	return &BreakerProvider{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the breaker's current state
func (p *BreakerProvider) State() gobreaker.State {
	return p.cb.State()
}

func (p *BreakerProvider) CreateSession(ctx context.Context, userID string, items []domain.LineItem) (*Session, error) {
	v, err := p.cb.Execute(func() (any, error) {
		return p.inner.CreateSession(ctx, userID, items)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (p *BreakerProvider) AddItem(ctx context.Context, sessionID string, item domain.LineItem) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.inner.AddItem(ctx, sessionID, item)
	})
	return err
}

func (p *BreakerProvider) RemoveItem(ctx context.Context, sessionID string, productID int64) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.inner.RemoveItem(ctx, sessionID, productID)
	})
	return err
}

func (p *BreakerProvider) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	v, err := p.cb.Execute(func() (any, error) {
		return p.inner.GetSession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (p *BreakerProvider) ValidateSession(ctx context.Context, sessionID string) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.inner.ValidateSession(ctx, sessionID)
	})
	return err
}

func (p *BreakerProvider) Checkout(ctx context.Context, sessionID string) (*CheckoutOutcome, error) {
	v, err := p.cb.Execute(func() (any, error) {
		return p.inner.Checkout(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CheckoutOutcome), nil
}
