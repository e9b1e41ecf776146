package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hsafari99/bell/internal/commerce"
	"github.com/hsafari99/bell/internal/domain"
)

// Checkout drives the user's cart through the checkout state machine
// inside one sequencer slot. It never returns an error: every attempt
// produces a tagged result, and the in_progress mark persisted before
// the first external call guarantees a crashed attempt can be retried
// without a second remote transaction.
func (s *CartService) Checkout(ctx context.Context, userID string) *domain.CheckoutResult {
	if userID == "" {
		return failedResult(userID, domain.ErrInvalidUserID.Error())
	}

	var result *domain.CheckoutResult
	_ = s.seq.Do(ctx, userID, func(ctx context.Context) error {
		result = s.runCheckout(ctx, userID)
		return nil
	})
	return result
}

func (s *CartService) runCheckout(ctx context.Context, userID string) *domain.CheckoutResult {
	// Load the cart. No cart means nothing to mark failed.
	cart, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return failedResult(userID, ReasonCartNotFound)
	}

	// Idempotency short-circuit: a completed cart replays its cached
	// result without any external call.
	if cart.CheckoutStatus == domain.CheckoutCompleted {
		if cart.CheckoutResult != nil {
			log.Printf("checkout replay for user %s: returning cached order %s", userID, cart.CheckoutResult.OrderID)
			return cart.CheckoutResult.Clone()
		}
		return failedResult(userID, ReasonAlreadyCheckedOut)
	}

	// A live in_progress attempt blocks new ones. Past the grace window
	// it counts as abandoned (crashed worker) and is taken over.
	if cart.CheckoutStatus == domain.CheckoutInProgress && cart.CheckoutStartedAt != nil {
		elapsed := time.Since(*cart.CheckoutStartedAt)
		if elapsed < s.checkoutGrace {
			return failedResult(userID, ReasonCheckoutInProgress)
		}
		log.Printf("taking over abandoned checkout for user %s (started %s ago)", userID, elapsed.Round(time.Second))
	}

	if len(cart.Items) == 0 {
		return failedResult(userID, ReasonEmptyCart)
	}

	// Mark in_progress and persist before any external call. A crash
	// from here on leaves a recoverable cart, not a duplicated order.
	if !cart.CheckoutStatus.CanTransitionTo(domain.CheckoutInProgress) {
		return failedResult(userID, fmt.Sprintf("illegal checkout transition from %s", cart.CheckoutStatus))
	}
	now := time.Now()
	cart.CheckoutStatus = domain.CheckoutInProgress
	cart.CheckoutStartedAt = &now
	cart.CheckoutError = ""
	if errPut := s.carts.Put(ctx, cart); errPut != nil {
		return failedResult(userID, fmt.Sprintf("failed to start checkout: %v", errPut))
	}

	// Full reconciler pass, then verify the remote session holds
	// exactly what we are about to transact.
	if errSync := s.syncCart(ctx, cart); errSync != nil {
		return s.failCheckout(ctx, cart, fmt.Sprintf("sync failed: %v", errSync))
	}
	handle, err := s.sessions.Get(ctx, cart.UserID)
	if err != nil {
		return s.failCheckout(ctx, cart, fmt.Sprintf("%v: no session handle: %v", ErrSyncValidation, err))
	}
	remote, err := s.provider.GetSession(ctx, handle.ID)
	if err != nil {
		return s.failCheckout(ctx, cart, fmt.Sprintf("%v: cannot read session: %v", ErrSyncValidation, err))
	}
	if errMatch := matchItems(cart.Items, remote.Items); errMatch != nil {
		cart.SyncStatus = domain.SyncFailed
		return s.failCheckout(ctx, cart, errMatch.Error())
	}

	// Price the cart now so a calculator failure aborts before the
	// remote transaction instead of after it.
	var taxCtx domain.TaxContext
	if cart.TaxContext != nil {
		taxCtx = *cart.TaxContext
	}
	breakdown, err := s.tax.Calculate(ctx, cart.Items, taxCtx)
	if err != nil {
		return s.failCheckout(ctx, cart, fmt.Sprintf("failed to compute totals: %v", err))
	}

	outcome, err := s.provider.Checkout(ctx, handle.ID)
	if err != nil {
		return s.failCheckout(ctx, cart, fmt.Sprintf("checkout call failed: %v", err))
	}
	if outcome.Status != commerce.OutcomeCompleted {
		reason := outcome.Error
		if reason == "" {
			reason = "provider reported checkout failure"
		}
		return s.failCheckout(ctx, cart, reason)
	}

	// Mark completed and cache the result before cleanup, so even a
	// failing cleanup leaves the idempotency short-circuit in place.
	completed := time.Now()
	result := &domain.CheckoutResult{
		UserID:      userID,
		OrderID:     outcome.OrderID,
		Subtotal:    breakdown.Subtotal,
		TaxLines:    breakdown.TaxLines,
		TotalTax:    breakdown.TotalTax,
		Total:       breakdown.Total,
		Status:      domain.CheckoutCompleted,
		Items:       outcome.Items,
		CompletedAt: &completed,
	}
	cart.CheckoutStatus = domain.CheckoutCompleted
	cart.CheckoutCompletedAt = &completed
	cart.CheckoutError = ""
	cart.CheckoutResult = result
	if errPut := s.carts.Put(ctx, cart); errPut != nil {
		// The remote transaction went through; the caller gets the
		// result even if we could not record it.
		log.Printf("CRITICAL: failed to record completed checkout for user %s (order %s): %v", userID, outcome.OrderID, errPut)
		return result.Clone()
	}

	log.Printf("checkout completed for user %s: order %s, total %.2f", userID, outcome.OrderID, result.Total)

	// Trigger best-effort cleanup as its own sequencer task, so any
	// operation already queued for this user still sees the completed
	// cart (and replays the cached result) before it disappears. The
	// sweeper collects whatever this misses.
	s.triggerCleanup(cart)

	return result.Clone()
}

// failCheckout records the failure on the cart and returns the tagged
// failed result. Failed carts are retryable.
func (s *CartService) failCheckout(ctx context.Context, cart *domain.Cart, reason string) *domain.CheckoutResult {
	cart.CheckoutStatus = domain.CheckoutFailed
	cart.CheckoutError = reason
	if err := s.carts.Put(ctx, cart); err != nil {
		log.Printf("failed to record checkout failure for user %s: %v", cart.UserID, err)
	}
	log.Printf("checkout failed for user %s: %s", cart.UserID, reason)
	return failedResult(cart.UserID, reason)
}

func (s *CartService) triggerCleanup(cart *domain.Cart) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.seq.Do(ctx, cart.UserID, func(ctx context.Context) error {
			s.cleanupAfterCheckout(ctx, cart)
			return nil
		})
	}()
}

func (s *CartService) cleanupAfterCheckout(ctx context.Context, cart *domain.Cart) {
	// The user may already be on a fresh cart; only collect the one
	// this checkout completed.
	current, err := s.carts.Get(ctx, cart.ID)
	if err != nil || current.CheckoutStatus != domain.CheckoutCompleted {
		return
	}
	if err := s.carts.Delete(ctx, cart.ID); err != nil {
		log.Printf("post-checkout cart cleanup failed for user %s: %v", cart.UserID, err)
	}
	if err := s.sessions.Delete(ctx, cart.UserID); err != nil {
		log.Printf("post-checkout session cleanup failed for user %s: %v", cart.UserID, err)
	}
}

func failedResult(userID, reason string) *domain.CheckoutResult {
	return &domain.CheckoutResult{
		UserID: userID,
		Status: domain.CheckoutFailed,
		Error:  reason,
	}
}
