package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsafari99/bell/internal/commerce"
	"github.com/hsafari99/bell/internal/domain"
)

func seedCheckoutCart(t *testing.T, rig *testRig, userID string) {
	t.Helper()
	ctx := context.Background()
	_, err := rig.svc.AddItem(ctx, userID, domain.LineItem{ProductID: 1, Name: "Laptop", Quantity: 1, UnitPrice: 999.99})
	require.NoError(t, err)
	_, err = rig.svc.AddItem(ctx, userID, domain.LineItem{ProductID: 2, Name: "Mouse", Quantity: 1, UnitPrice: 79.99})
	require.NoError(t, err)
	_, err = rig.svc.SetTaxContext(ctx, userID, domain.TaxContext{
		Jurisdiction: "CA-ON",
		AsOfDate:     time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestCheckout_HappyPath(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	result := rig.svc.Checkout(ctx, "user-1")

	require.Equal(t, domain.CheckoutCompleted, result.Status)
	assert.NotEmpty(t, result.OrderID)
	assert.Empty(t, result.Error)
	assert.InDelta(t, 1079.98, result.Subtotal, 0.001)
	assert.InDelta(t, 140.40, result.TotalTax, 0.001)
	assert.InDelta(t, 1220.38, result.Total, 0.001)
	assert.Len(t, result.Items, 2)
	assert.NotNil(t, result.CompletedAt)
	assert.Equal(t, 1, rig.provider.CheckoutCalls())

	// Cleanup runs as its own queued task; the cart and session go away.
	require.Eventually(t, func() bool {
		return rig.carts.Len() == 0 && rig.sessions.Len() == 0
	}, 2*time.Second, 10*time.Millisecond, "cart and session should be collected after checkout")
}

func TestCheckout_EmptyCart(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()

	_, err := rig.svc.GetCart(ctx, "user-1")
	require.NoError(t, err)

	result := rig.svc.Checkout(ctx, "user-1")

	assert.Equal(t, domain.CheckoutFailed, result.Status)
	assert.Equal(t, ReasonEmptyCart, result.Error)
	assert.Empty(t, result.OrderID)
	assert.Equal(t, 0, rig.provider.CheckoutCalls(), "empty cart must never reach the provider")
}

func TestCheckout_NoCart(t *testing.T) {
	rig := setupService(t)

	result := rig.svc.Checkout(context.Background(), "user-1")

	assert.Equal(t, domain.CheckoutFailed, result.Status)
	assert.Equal(t, ReasonCartNotFound, result.Error)
}

func TestCheckout_QueuedSecondCallReplaysResult(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	// Hold the provider's checkout so the second call queues up behind
	// the first inside the sequencer.
	gate := make(chan struct{})
	rig.provider.mu.Lock()
	rig.provider.checkoutGate = gate
	rig.provider.mu.Unlock()

	results := make(chan *domain.CheckoutResult, 2)
	go func() { results <- rig.svc.Checkout(ctx, "user-1") }()
	require.Eventually(t, func() bool {
		return rig.provider.CheckoutCalls() == 1
	}, 2*time.Second, 5*time.Millisecond, "first checkout should reach the provider")

	go func() { results <- rig.svc.Checkout(ctx, "user-1") }()
	time.Sleep(50 * time.Millisecond) // let the second call enqueue
	close(gate)

	first := <-results
	second := <-results

	require.Equal(t, domain.CheckoutCompleted, first.Status)
	require.Equal(t, domain.CheckoutCompleted, second.Status)
	assert.Equal(t, first.OrderID, second.OrderID, "second call must replay, not transact")
	assert.Equal(t, 1, rig.provider.CheckoutCalls(), "exactly one remote transaction")
}

func TestCheckout_ReplayAfterCleanupFailure(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	// Cleanup's delete is forced to fail, so the completed cart stays.
	rig.flaky.setDeleteErr(errors.New("delete refused"))

	first := rig.svc.Checkout(ctx, "user-1")
	require.Equal(t, domain.CheckoutCompleted, first.Status)

	// Give the cleanup task time to run (and fail).
	require.Eventually(t, func() bool {
		return rig.carts.Len() == 1
	}, time.Second, 10*time.Millisecond)

	second := rig.svc.Checkout(ctx, "user-1")

	require.Equal(t, domain.CheckoutCompleted, second.Status)
	assert.Equal(t, first.OrderID, second.OrderID, "must not fabricate a new order id")
	assert.Equal(t, 1, rig.provider.CheckoutCalls(), "must not re-invoke the remote checkout")
}

func TestCheckout_ProviderErrorIsRetryable(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	boom := errors.New("backend down")
	rig.provider.setErr(&rig.provider.checkoutErr, boom)

	result := rig.svc.Checkout(ctx, "user-1")
	require.Equal(t, domain.CheckoutFailed, result.Status)
	assert.Contains(t, result.Error, "backend down")

	cart, err := rig.svc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutFailed, cart.CheckoutStatus)
	assert.NotEmpty(t, cart.CheckoutError)
	assert.Nil(t, cart.CheckoutResult, "failed attempts cache no result")

	// Once the provider recovers, the retry goes through.
	rig.provider.setErr(&rig.provider.checkoutErr, nil)
	retry := rig.svc.Checkout(ctx, "user-1")
	require.Equal(t, domain.CheckoutCompleted, retry.Status)
	assert.NotEmpty(t, retry.OrderID)
}

func TestCheckout_ProviderReportsFailedOutcome(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	rig.provider.mu.Lock()
	rig.provider.checkoutOutcome = &commerce.CheckoutOutcome{
		Status: commerce.OutcomeFailed,
		Error:  "card declined",
	}
	rig.provider.mu.Unlock()

	result := rig.svc.Checkout(ctx, "user-1")

	assert.Equal(t, domain.CheckoutFailed, result.Status)
	assert.Equal(t, "card declined", result.Error)
	assert.Empty(t, result.OrderID)
}

func TestCheckout_InProgressBlocksWithinGrace(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	// Simulate another worker mid-checkout.
	cart, err := rig.carts.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	now := time.Now()
	cart.CheckoutStatus = domain.CheckoutInProgress
	cart.CheckoutStartedAt = &now
	require.NoError(t, rig.carts.Put(ctx, cart))

	result := rig.svc.Checkout(ctx, "user-1")

	assert.Equal(t, domain.CheckoutFailed, result.Status)
	assert.Equal(t, ReasonCheckoutInProgress, result.Error)
	assert.Equal(t, 0, rig.provider.CheckoutCalls())
}

func TestCheckout_AbandonedInProgressIsTakenOver(t *testing.T) {
	rig := setupService(t, WithCheckoutGrace(50*time.Millisecond))
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	cart, err := rig.carts.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	started := time.Now().Add(-time.Minute)
	cart.CheckoutStatus = domain.CheckoutInProgress
	cart.CheckoutStartedAt = &started
	require.NoError(t, rig.carts.Put(ctx, cart))

	result := rig.svc.Checkout(ctx, "user-1")

	require.Equal(t, domain.CheckoutCompleted, result.Status)
	assert.NotEmpty(t, result.OrderID)
}

func TestCheckout_SyncValidationFailure(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	// Every session read reports an item list that does not match the
	// cart, so the pre-transaction check must refuse to proceed.
	rig.provider.mu.Lock()
	rig.provider.tamperItems = []domain.LineItem{{ProductID: 99, Quantity: 1, UnitPrice: 1}}
	rig.provider.mu.Unlock()

	result := rig.svc.Checkout(ctx, "user-1")

	assert.Equal(t, domain.CheckoutFailed, result.Status)
	assert.Contains(t, result.Error, "sync validation failed")
	assert.Equal(t, 0, rig.provider.CheckoutCalls(), "mismatch must abort before the transaction")
}

func TestCheckout_FreshCartAfterCompleted(t *testing.T) {
	rig := setupService(t)
	ctx := context.Background()
	seedCheckoutCart(t, rig, "user-1")

	first := rig.svc.Checkout(ctx, "user-1")
	require.Equal(t, domain.CheckoutCompleted, first.Status)
	require.Eventually(t, func() bool { return rig.carts.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	// The next shopping trip starts from a clean cart and a new order.
	cart, err := rig.svc.AddItem(ctx, "user-1", domain.LineItem{ProductID: 5, Name: "Keyboard", Quantity: 1, UnitPrice: 49.99})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, domain.CheckoutPending, cart.CheckoutStatus)

	second := rig.svc.Checkout(ctx, "user-1")
	require.Equal(t, domain.CheckoutCompleted, second.Status)
	assert.NotEqual(t, first.OrderID, second.OrderID)
	assert.Equal(t, 2, rig.provider.CheckoutCalls())
}

func TestCheckout_EmptyUserID(t *testing.T) {
	rig := setupService(t)

	result := rig.svc.Checkout(context.Background(), "")
	assert.Equal(t, domain.CheckoutFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}
