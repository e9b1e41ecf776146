package domain

// SyncStatus tracks how well the local cart matches its remote session.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncFailed  SyncStatus = "failed"
)

func (s SyncStatus) String() string {
	return string(s)
}

// CheckoutStatus is the cart's position in the checkout state machine.
type CheckoutStatus string

const (
	CheckoutPending    CheckoutStatus = "pending"
	CheckoutInProgress CheckoutStatus = "in_progress"
	CheckoutCompleted  CheckoutStatus = "completed"
	CheckoutFailed     CheckoutStatus = "failed"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutCompleted
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next. Failed checkouts are retryable: failed -> in_progress is legal.
// in_progress -> in_progress covers taking over an abandoned attempt after
// its grace period. Completed is terminal.
func (s CheckoutStatus) CanTransitionTo(next CheckoutStatus) bool {
	switch s {
	case CheckoutPending:
		return next == CheckoutInProgress
	case CheckoutInProgress:
		return next == CheckoutInProgress || next == CheckoutCompleted || next == CheckoutFailed
	case CheckoutFailed:
		return next == CheckoutInProgress
	default:
		return false
	}
}
