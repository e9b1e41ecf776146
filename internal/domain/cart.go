package domain

import "time"

// LineItem is a single product entry in a cart. Items are value objects owned
// by their cart; equality of product id identifies the line.
type LineItem struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Subtotal is the line's quantity-extended price.
func (i LineItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// TaxContext selects which jurisdiction's rates apply to a cart and as of
// which date. CustomerID is carried for calculators that support per-customer
// treatment; the built-in calculator ignores it.
type TaxContext struct {
	Jurisdiction string    `json:"jurisdiction"`
	AsOfDate     time.Time `json:"as_of_date"`
	CustomerID   string    `json:"customer_id,omitempty"`
}

// Cart is the local source of truth for one user's basket. There is exactly
// one cart per user id at any time. The remote commerce session is referenced
// only by SessionID; the session handle itself lives in the session store so
// the two can expire independently.
type Cart struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Items          []LineItem `json:"items"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`

	SessionID  string      `json:"session_id,omitempty"`
	TaxContext *TaxContext `json:"tax_context,omitempty"`

	SyncStatus    SyncStatus `json:"sync_status"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	LastSyncError string     `json:"last_sync_error,omitempty"`

	CheckoutStatus      CheckoutStatus  `json:"checkout_status"`
	CheckoutStartedAt   *time.Time      `json:"checkout_started_at,omitempty"`
	CheckoutCompletedAt *time.Time      `json:"checkout_completed_at,omitempty"`
	CheckoutError       string          `json:"checkout_error,omitempty"`
	CheckoutResult      *CheckoutResult `json:"checkout_result,omitempty"`
}

// NewCart returns an empty cart for the user, synced (nothing to sync yet)
// and pending checkout.
func NewCart(id, userID string, now time.Time) *Cart {
	return &Cart{
		ID:             id,
		UserID:         userID,
		Items:          []LineItem{},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		SyncStatus:     SyncSynced,
		CheckoutStatus: CheckoutPending,
	}
}

// FindItem returns the index of the line with the given product id, or -1.
func (c *Cart) FindItem(productID int64) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// UpsertItem adds the item or, if a line with the same product id already
// exists, replaces that line. Product ids stay unique within the cart.
func (c *Cart) UpsertItem(item LineItem) {
	if i := c.FindItem(item.ProductID); i >= 0 {
		c.Items[i] = item
		return
	}
	c.Items = append(c.Items, item)
}

// RemoveItem deletes the line with the given product id. It reports whether
// a line was removed.
func (c *Cart) RemoveItem(productID int64) bool {
	i := c.FindItem(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// TotalQuantity sums the quantities of all lines.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal sums the quantity-extended prices of all lines, unrounded.
func (c *Cart) Subtotal() float64 {
	total := 0.0
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// Touch bumps the mutation timestamps.
func (c *Cart) Touch(now time.Time) {
	c.UpdatedAt = now
	c.LastAccessedAt = now
}

// Clone returns a deep copy. Stores hand out clones so that callers and the
// background sweeper never share mutable state.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]LineItem, len(c.Items))
	copy(cp.Items, c.Items)
	if c.TaxContext != nil {
		tc := *c.TaxContext
		cp.TaxContext = &tc
	}
	cp.LastSyncAt = cloneTime(c.LastSyncAt)
	cp.CheckoutStartedAt = cloneTime(c.CheckoutStartedAt)
	cp.CheckoutCompletedAt = cloneTime(c.CheckoutCompletedAt)
	cp.CheckoutResult = c.CheckoutResult.Clone()
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
