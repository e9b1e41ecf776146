package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hsafari99/bell/internal/domain"
	"github.com/hsafari99/bell/internal/store"
)

// GetCart returns the user's cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	var cart *domain.Cart
	err := s.seq.Do(ctx, userID, func(ctx context.Context) error {
		var errGet error
		cart, errGet = s.getOrCreate(ctx, userID)
		return errGet
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem puts the item into the user's cart, replacing any line with the
// same product id, and best-effort replays the change against the remote
// session. Returns the updated cart.
func (s *CartService) AddItem(ctx context.Context, userID string, item domain.LineItem) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if err := domain.ValidateItem(item); err != nil {
		return nil, err
	}

	var cart *domain.Cart
	err := s.seq.Do(ctx, userID, func(ctx context.Context) error {
		loaded, errGet := s.getOrCreate(ctx, userID)
		if errGet != nil {
			return errGet
		}
		loaded.UpsertItem(item)
		loaded.Touch(time.Now())

		// Remote failures degrade sync status; the local change still lands.
		_ = s.syncCart(ctx, loaded)

		if errPut := s.carts.Put(ctx, loaded); errPut != nil {
			return fmt.Errorf("failed to store cart: %w", errPut)
		}
		cart = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateItemQuantity sets the quantity of an existing line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}

	var cart *domain.Cart
	err := s.seq.Do(ctx, userID, func(ctx context.Context) error {
		loaded, errGet := s.loadActive(ctx, userID)
		if errGet != nil {
			return errGet
		}
		i := loaded.FindItem(productID)
		if i < 0 {
			return fmt.Errorf("%w: product %d", ErrItemNotFound, productID)
		}
		loaded.Items[i].Quantity = quantity
		loaded.Touch(time.Now())

		_ = s.syncCart(ctx, loaded)

		if errPut := s.carts.Put(ctx, loaded); errPut != nil {
			return fmt.Errorf("failed to store cart: %w", errPut)
		}
		cart = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem deletes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	var cart *domain.Cart
	err := s.seq.Do(ctx, userID, func(ctx context.Context) error {
		loaded, errGet := s.loadActive(ctx, userID)
		if errGet != nil {
			return errGet
		}
		if !loaded.RemoveItem(productID) {
			return fmt.Errorf("%w: product %d", ErrItemNotFound, productID)
		}
		loaded.Touch(time.Now())

		_ = s.syncCart(ctx, loaded)

		if errPut := s.carts.Put(ctx, loaded); errPut != nil {
			return fmt.Errorf("failed to store cart: %w", errPut)
		}
		cart = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// ClearCart empties the cart. The cart itself and its remote session
// stay around; the reconciler empties the session to match.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	var cart *domain.Cart
	err := s.seq.Do(ctx, userID, func(ctx context.Context) error {
		loaded, errGet := s.loadActive(ctx, userID)
		if errGet != nil {
			return errGet
		}
		loaded.Items = []domain.LineItem{}
		loaded.Touch(time.Now())

		_ = s.syncCart(ctx, loaded)

		if errPut := s.carts.Put(ctx, loaded); errPut != nil {
			return fmt.Errorf("failed to store cart: %w", errPut)
		}
		cart = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// SetTaxContext attaches a tax context to the cart. The context is
// local pricing state, so no remote sync is needed.
func (s *CartService) SetTaxContext(ctx context.Context, userID string, taxCtx domain.TaxContext) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	var cart *domain.Cart
	err := s.seq.Do(ctx, userID, func(ctx context.Context) error {
		loaded, errGet := s.loadActive(ctx, userID)
		if errGet != nil {
			return errGet
		}
		tc := taxCtx
		loaded.TaxContext = &tc
		loaded.Touch(time.Now())

		if errPut := s.carts.Put(ctx, loaded); errPut != nil {
			return fmt.Errorf("failed to store cart: %w", errPut)
		}
		cart = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// GetSummary returns the cart with totals computed for its tax context.
// Summaries read the store directly instead of queueing behind the
// user's pending mutations; concurrent reads for one user are collapsed.
func (s *CartService) GetSummary(ctx context.Context, userID string) (*domain.CartSummary, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, errGet := s.loadActive(ctx, userID)
		if errors.Is(errGet, store.ErrCartNotFound) {
			// First access for this user creates the cart.
			cart, errGet = s.GetCart(ctx, userID)
		}
		if errGet != nil {
			return nil, errGet
		}

		var taxCtx domain.TaxContext
		if cart.TaxContext != nil {
			taxCtx = *cart.TaxContext
		}
		totals, errCalc := s.tax.Calculate(ctx, cart.Items, taxCtx)
		if errCalc != nil {
			return nil, fmt.Errorf("failed to compute totals: %w", errCalc)
		}
		return &domain.CartSummary{Cart: cart, Totals: totals}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CartSummary), nil
}
