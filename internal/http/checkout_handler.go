package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/hsafari99/bell/internal/domain"
	"github.com/hsafari99/bell/internal/service"
)

// CheckoutService runs checkout for a user's cart.
type CheckoutService interface {
	Checkout(ctx context.Context, userID string) *domain.CheckoutResult
}

type CheckoutHandler struct {
	service CheckoutService
	timeout time.Duration
}

func NewCheckoutHandler(service CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		timeout: timeout,
	}
}

// POST /api/v1/checkout
//
// Always returns the checkout result; the status code reflects the tagged
// outcome inside it. Retrying a completed checkout replays the same result.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	result := h.service.Checkout(ctx, userID)
	if result.Status == domain.CheckoutCompleted {
		respondJSON(w, http.StatusOK, result)
		return
	}

	log.Printf("checkout failed for user %s: %s (request_id=%s)",
		userID, result.Error, getRequestID(r.Context()))
	respondJSON(w, checkoutFailureStatus(result.Error), result)
}

// checkoutFailureStatus picks the response code for a failed checkout from
// its recorded reason.
func checkoutFailureStatus(reason string) int {
	switch reason {
	case service.ReasonCartNotFound:
		return http.StatusNotFound
	case service.ReasonAlreadyCheckedOut, service.ReasonCheckoutInProgress:
		return http.StatusConflict
	case service.ReasonEmptyCart:
		return http.StatusUnprocessableEntity
	default:
		// Sync and provider failures happened on the remote side.
		return http.StatusBadGateway
	}
}
