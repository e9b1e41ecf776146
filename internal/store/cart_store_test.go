package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsafari99/bell/internal/domain"
)

func newTestCart(id, userID string) *domain.Cart {
	cart := domain.NewCart(id, userID, time.Now())
	cart.UpsertItem(domain.LineItem{ProductID: 1, Name: "Widget", Quantity: 2, UnitPrice: 9.99})
	return cart
}

func TestMemoryCartStore_Put_And_Get(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	cart := newTestCart("cart-1", "user-1")
	require.NoError(t, store.Put(ctx, cart))

	got, err := store.Get(ctx, "cart-1")
	require.NoError(t, err)

	assert.Equal(t, "cart-1", got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, int64(1), got.Items[0].ProductID)
}

func TestMemoryCartStore_Get_NotFound(t *testing.T) {
	store := NewMemoryCartStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMemoryCartStore_Get_BumpsLastAccess(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	cart := newTestCart("cart-1", "user-1")
	cart.LastAccessedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Put(ctx, cart))

	got, err := store.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got.LastAccessedAt, time.Second)
}

func TestMemoryCartStore_GetByUser(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newTestCart("cart-1", "user-1")))
	require.NoError(t, store.Put(ctx, newTestCart("cart-2", "user-2")))

	got, err := store.GetByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "cart-2", got.ID)

	_, err = store.GetByUser(ctx, "user-3")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMemoryCartStore_Get_ReturnsACopy(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newTestCart("cart-1", "user-1")))

	got, err := store.Get(ctx, "cart-1")
	require.NoError(t, err)

	// Mutating the returned cart must not leak into the store.
	got.Items[0].Quantity = 99
	got.UpsertItem(domain.LineItem{ProductID: 2, Name: "Gadget", Quantity: 1, UnitPrice: 5})

	fresh, err := store.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Len(t, fresh.Items, 1)
	assert.Equal(t, 2, fresh.Items[0].Quantity)
}

func TestMemoryCartStore_Put_ReplacesPrevious(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	cart := newTestCart("cart-1", "user-1")
	require.NoError(t, store.Put(ctx, cart))

	cart.Items[0].Quantity = 5
	require.NoError(t, store.Put(ctx, cart))

	got, err := store.Get(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Items[0].Quantity)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryCartStore_Delete(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newTestCart("cart-1", "user-1")))
	require.NoError(t, store.Delete(ctx, "cart-1"))

	_, err := store.Get(ctx, "cart-1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	// The user index must go with the cart.
	_, err = store.GetByUser(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	// Deleting again is a no-op, not an error.
	assert.NoError(t, store.Delete(ctx, "cart-1"))
}

func TestMemoryCartStore_List_DoesNotBumpAccess(t *testing.T) {
	store := NewMemoryCartStore()
	ctx := context.Background()

	stale := time.Now().Add(-2 * time.Hour)
	cart := newTestCart("cart-1", "user-1")
	cart.LastAccessedAt = stale
	require.NoError(t, store.Put(ctx, cart))

	carts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, carts, 1)
	assert.WithinDuration(t, stale, carts[0].LastAccessedAt, time.Second)
}
