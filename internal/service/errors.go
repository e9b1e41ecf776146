package service

import "errors"

// Errors raised by cart operations. Checkout never raises: it reports
// failures inside the returned CheckoutResult instead.
var (
	ErrItemNotFound   = errors.New("item not found in cart")
	ErrSyncValidation = errors.New("sync validation failed")
)

// Checkout failure reasons carried in CheckoutResult.Error. The HTTP
// layer keys response codes off these, so they are fixed strings.
const (
	ReasonCartNotFound       = "cart not found"
	ReasonAlreadyCheckedOut  = "already checked out"
	ReasonCheckoutInProgress = "checkout in progress"
	ReasonEmptyCart          = "cart is empty, nothing to checkout"
)
