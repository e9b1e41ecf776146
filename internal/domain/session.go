package domain

import "time"

// SessionHandle is the local record of a remote commerce-platform cart
// session. A handle past its expiry is logically absent: stores must treat it
// as nonexistent on read. Apart from the Expired flag a handle is never
// mutated in place; replacing a session means writing a fresh handle.
type SessionHandle struct {
	ID           string    `json:"id"`
	RemoteCartID string    `json:"remote_cart_id"`
	Provider     string    `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Expired      bool      `json:"expired"`
}

// IsExpired checks if the handle has passed its expiry timestamp.
func (h *SessionHandle) IsExpired() bool {
	return h.Expired || time.Now().After(h.ExpiresAt)
}

// Clone returns a copy of the handle.
func (h *SessionHandle) Clone() *SessionHandle {
	if h == nil {
		return nil
	}
	cp := *h
	return &cp
}
