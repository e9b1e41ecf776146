// Package sweeper evicts stale, completed and stuck carts and expired
// sessions from the in-memory stores on a fixed period.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/hsafari99/bell/internal/domain"
	"github.com/hsafari99/bell/internal/store"
)

// Default bounds for the sweep rules
const (
	DefaultInterval          = 5 * time.Minute
	DefaultInProgressTimeout = 5 * time.Minute
	DefaultFailedRetention   = time.Hour
	DefaultIdleTTL           = 24 * time.Hour
)

// Config bounds the sweeper's rules. Zero fields fall back to the defaults.
type Config struct {
	// Interval is how often a pass runs
	Interval time.Duration

	// InProgressTimeout is how long a checkout may sit in_progress
	// before it is marked failed with a timeout error
	InProgressTimeout time.Duration

	// FailedRetention is how long a failed cart is kept, measured from
	// when its checkout attempt started
	FailedRetention time.Duration

	// IdleTTL is how long an untouched cart is kept
	IdleTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.InProgressTimeout <= 0 {
		c.InProgressTimeout = DefaultInProgressTimeout
	}
	if c.FailedRetention <= 0 {
		c.FailedRetention = DefaultFailedRetention
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	return c
}

// Stats counts what one pass did
type Stats struct {
	CartsDeleted    int `json:"carts_deleted"`
	CartsTimedOut   int `json:"carts_timed_out"`
	SessionsDeleted int `json:"sessions_deleted"`
}

// Sweeper runs the cleanup pass. It reads the stores outside any user's
// sequencer slot, so every read and delete is best-effort by design and
// tolerates racing in-flight operations.
type Sweeper struct {
	cfg      Config
	carts    store.CartStore
	sessions store.SessionStore
}

func New(carts store.CartStore, sessions store.SessionStore, cfg Config) *Sweeper {
	return &Sweeper{
		cfg:      cfg.withDefaults(),
		carts:    carts,
		sessions: sessions,
	}
}

// Run sweeps once immediately, then on every tick until the context is
// canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one full pass over both stores and reports what it did.
// Also triggered on demand by the admin endpoint.
func (s *Sweeper) Sweep(ctx context.Context) Stats {
	var stats Stats

	carts, err := s.carts.List(ctx)
	if err != nil {
		log.Printf("sweep: failed to list carts: %v", err)
	} else {
		for _, cart := range carts {
			s.sweepCart(ctx, cart, &stats)
		}
	}

	// Sessions expire on their own clock, independent of cart state.
	removed, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		log.Printf("sweep: failed to drop expired sessions: %v", err)
	}
	stats.SessionsDeleted = removed

	if stats.CartsDeleted+stats.CartsTimedOut+stats.SessionsDeleted > 0 {
		log.Printf("sweep: deleted %d carts, timed out %d checkouts, dropped %d sessions",
			stats.CartsDeleted, stats.CartsTimedOut, stats.SessionsDeleted)
	}
	return stats
}

// sweepCart applies the eviction rules to one cart, first match wins.
func (s *Sweeper) sweepCart(ctx context.Context, cart *domain.Cart, stats *Stats) {
	now := time.Now()
	switch {
	case cart.CheckoutStatus == domain.CheckoutCompleted:
		s.deleteCart(ctx, cart, stats, "completed")

	case cart.CheckoutStatus == domain.CheckoutFailed && startedBefore(cart, now.Add(-s.cfg.FailedRetention)):
		s.deleteCart(ctx, cart, stats, "failed")

	case cart.CheckoutStatus == domain.CheckoutInProgress && startedBefore(cart, now.Add(-s.cfg.InProgressTimeout)):
		s.timeoutCart(ctx, cart, stats)

	case now.Sub(cart.LastAccessedAt) > s.cfg.IdleTTL:
		s.deleteCart(ctx, cart, stats, "idle")
	}
}

// timeoutCart marks a stuck in_progress checkout as failed. The cart is
// not deleted: checkout's own retry logic or a later pass decides its
// fate once the failure is recorded.
func (s *Sweeper) timeoutCart(ctx context.Context, cart *domain.Cart, stats *Stats) {
	// Re-read right before writing; the checkout may have finished, or a
	// fresh attempt started, between the list and now.
	cutoff := time.Now().Add(-s.cfg.InProgressTimeout)
	current, err := s.carts.Get(ctx, cart.ID)
	if err != nil || current.CheckoutStatus != domain.CheckoutInProgress || !startedBefore(current, cutoff) {
		return
	}
	current.CheckoutStatus = domain.CheckoutFailed
	current.CheckoutError = "checkout timed out"
	if err := s.carts.Put(ctx, current); err != nil {
		log.Printf("sweep: failed to time out checkout for user %s: %v", current.UserID, err)
		return
	}
	stats.CartsTimedOut++
	log.Printf("sweep: timed out stuck checkout for user %s (started %s ago)",
		current.UserID, time.Since(*current.CheckoutStartedAt).Round(time.Second))
}

func (s *Sweeper) deleteCart(ctx context.Context, cart *domain.Cart, stats *Stats, reason string) {
	if err := s.carts.Delete(ctx, cart.ID); err != nil {
		log.Printf("sweep: failed to delete cart %s: %v", cart.ID, err)
		return
	}
	if err := s.sessions.Delete(ctx, cart.UserID); err != nil {
		log.Printf("sweep: failed to delete session for user %s: %v", cart.UserID, err)
	}
	stats.CartsDeleted++
	log.Printf("sweep: deleted %s cart %s (user %s)", reason, cart.ID, cart.UserID)
}

func startedBefore(cart *domain.Cart, cutoff time.Time) bool {
	return cart.CheckoutStartedAt != nil && cart.CheckoutStartedAt.Before(cutoff)
}
