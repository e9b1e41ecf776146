package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hsafari99/bell/internal/domain"
	"github.com/hsafari99/bell/internal/store"
)

// syncCart replays the cart's items against the remote session and
// records the outcome on the cart's sync fields. Ordinary mutations
// ignore the returned error (their local change must land regardless);
// checkout treats it as fatal.
func (s *CartService) syncCart(ctx context.Context, cart *domain.Cart) error {
	if err := s.reconcile(ctx, cart); err != nil {
		cart.SyncStatus = domain.SyncPending
		cart.LastSyncError = err.Error()
		log.Printf("cart sync failed for user %s: %v", cart.UserID, err)
		return err
	}

	now := time.Now()
	cart.SyncStatus = domain.SyncSynced
	cart.LastSyncAt = &now
	cart.LastSyncError = ""
	return nil
}

// reconcile makes the remote session's item list match the local cart.
// A session created in this pass is seeded with the full item list, so
// there is nothing left to diff. An existing session is diffed: removals
// first, then additions and quantity changes.
func (s *CartService) reconcile(ctx context.Context, cart *domain.Cart) error {
	handle, created, err := s.ensureSession(ctx, cart)
	if err != nil {
		return err
	}
	if created {
		return nil
	}

	remote, err := s.provider.GetSession(ctx, handle.ID)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	toRemove, toAdd := diffItems(cart.Items, remote.Items)

	for _, productID := range toRemove {
		if err := s.provider.RemoveItem(ctx, handle.ID, productID); err != nil {
			return fmt.Errorf("failed to remove product %d: %w", productID, err)
		}
	}
	for _, item := range toAdd {
		if err := s.provider.AddItem(ctx, handle.ID, item); err != nil {
			return fmt.Errorf("failed to add product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// ensureSession returns a session handle the provider has confirmed
// live, creating and seeding a fresh session when there is none or the
// provider no longer honors the stored one. Reports whether it created.
func (s *CartService) ensureSession(ctx context.Context, cart *domain.Cart) (*domain.SessionHandle, bool, error) {
	handle, err := s.sessions.Get(ctx, cart.UserID)
	if err == nil {
		if errValidate := s.provider.ValidateSession(ctx, handle.ID); errValidate == nil {
			cart.SessionID = handle.ID
			return handle, false, nil
		}
		// The provider no longer honors it; drop the stale handle.
		_ = s.sessions.Delete(ctx, cart.UserID)
	} else if !errors.Is(err, store.ErrSessionNotFound) {
		return nil, false, err
	}

	handle, err = s.createSession(ctx, cart)
	if err != nil {
		return nil, false, err
	}
	return handle, true, nil
}

// createSession opens a remote session seeded with the cart's items and
// stores its handle.
func (s *CartService) createSession(ctx context.Context, cart *domain.Cart) (*domain.SessionHandle, error) {
	session, err := s.provider.CreateSession(ctx, cart.UserID, cart.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	handle := &domain.SessionHandle{
		ID:           session.ID,
		RemoteCartID: session.RemoteCartID,
		Provider:     session.Provider,
		CreatedAt:    session.CreatedAt,
		ExpiresAt:    session.ExpiresAt,
	}
	if err := s.sessions.Put(ctx, cart.UserID, handle); err != nil {
		return nil, fmt.Errorf("failed to store session handle: %w", err)
	}

	cart.SessionID = handle.ID
	log.Printf("created session %s for user %s", handle.ID, cart.UserID)
	return handle, nil
}

// diffItems computes what to replay against the remote session: product
// ids present remotely but not locally, and local items that are absent
// remotely or carry a different quantity there.
func diffItems(local, remote []domain.LineItem) (toRemove []int64, toAdd []domain.LineItem) {
	localByID := make(map[int64]domain.LineItem, len(local))
	for _, item := range local {
		localByID[item.ProductID] = item
	}
	remoteQty := make(map[int64]int, len(remote))
	for _, item := range remote {
		remoteQty[item.ProductID] = item.Quantity
		if _, exists := localByID[item.ProductID]; !exists {
			toRemove = append(toRemove, item.ProductID)
		}
	}
	for _, item := range local {
		if qty, exists := remoteQty[item.ProductID]; !exists || qty != item.Quantity {
			toAdd = append(toAdd, item)
		}
	}
	return toRemove, toAdd
}

// matchItems is checkout's strict pre-transaction check: the remote
// session must hold exactly the local item list (same count, same
// per-product quantities). Unlike reconcile's diff this aborts checkout.
func matchItems(local, remote []domain.LineItem) error {
	if len(local) != len(remote) {
		return fmt.Errorf("%w: cart has %d items, session has %d", ErrSyncValidation, len(local), len(remote))
	}
	remoteQty := make(map[int64]int, len(remote))
	for _, item := range remote {
		remoteQty[item.ProductID] = item.Quantity
	}
	for _, item := range local {
		qty, exists := remoteQty[item.ProductID]
		if !exists {
			return fmt.Errorf("%w: product %d missing from session", ErrSyncValidation, item.ProductID)
		}
		if qty != item.Quantity {
			return fmt.Errorf("%w: product %d has quantity %d in session, %d in cart", ErrSyncValidation, item.ProductID, qty, item.Quantity)
		}
	}
	return nil
}
