package domain

import "time"

// TaxLine is one component of the computed tax (e.g. a state and a city tax
// applying to the same sale).
type TaxLine struct {
	Name         string  `json:"name"`
	Jurisdiction string  `json:"jurisdiction"`
	Rate         float64 `json:"rate"`
	Amount       float64 `json:"amount"`
}

// TaxBreakdown is the full monetary result of pricing a set of items:
// cent-rounded subtotal, individual tax lines, their sum, and the grand total.
type TaxBreakdown struct {
	Subtotal float64   `json:"subtotal"`
	TaxLines []TaxLine `json:"tax_lines"`
	TotalTax float64   `json:"total_tax"`
	Total    float64   `json:"total"`
}

// CheckoutResult is the tagged outcome of a checkout attempt. Exactly one
// completed result with an order id is ever produced per cart; it is cached
// on the cart so repeated checkout calls replay it instead of transacting
// again.
type CheckoutResult struct {
	UserID      string         `json:"user_id"`
	OrderID     string         `json:"order_id,omitempty"`
	Subtotal    float64        `json:"subtotal"`
	TaxLines    []TaxLine      `json:"tax_lines,omitempty"`
	TotalTax    float64        `json:"total_tax"`
	Total       float64        `json:"total"`
	Status      CheckoutStatus `json:"status"`
	Items       []LineItem     `json:"items,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *CheckoutResult) Clone() *CheckoutResult {
	if r == nil {
		return nil
	}
	cp := *r
	cp.TaxLines = make([]TaxLine, len(r.TaxLines))
	copy(cp.TaxLines, r.TaxLines)
	cp.Items = make([]LineItem, len(r.Items))
	copy(cp.Items, r.Items)
	cp.CompletedAt = cloneTime(r.CompletedAt)
	return &cp
}

// CartSummary pairs a cart with the totals computed for its tax context.
type CartSummary struct {
	Cart   *Cart        `json:"cart"`
	Totals TaxBreakdown `json:"totals"`
}
