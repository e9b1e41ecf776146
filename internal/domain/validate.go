package domain

import (
	"errors"
	"fmt"
)

// Validation errors raised before any state is touched.
var (
	ErrInvalidProductID = errors.New("product id must be positive")
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrInvalidPrice     = errors.New("unit price must not be negative")
	ErrInvalidUserID    = errors.New("user id must not be empty")
)

// ValidateItem rejects malformed line items. Name and category are free-form
// and not validated here.
func ValidateItem(item LineItem) error {
	if item.ProductID <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidProductID, item.ProductID)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, item.Quantity)
	}
	if item.UnitPrice < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidPrice, item.UnitPrice)
	}
	return nil
}
