package entity

import "time"

const (
	SessionStatusPending   = "pending"
	SessionStatusComplete  = "complete"
	SessionStatusRefunded  = "refunded"
	SessionStatusFailed    = "failed"
	SessionStatusCancelled = "cancelled"
)

// CheckoutSession is the local record for one MoneyMotion hosted
// checkout attempt. session_id is provider-issued and immutable; the
// row is the source of truth for idempotent webhook reconciliation.
type CheckoutSession struct {
	SessionID string

	TransactionID uint64
	InvoiceID     uint64
	MemberID      uint64

	Email       string
	Description string

	AmountCents int64
	Currency    string

	Status string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TerminalStatus reports whether a session may no longer return to
// pending. complete -> refunded is the only transition out of a
// terminal status.
func TerminalStatus(status string) bool {
	switch status {
	case SessionStatusComplete, SessionStatusRefunded, SessionStatusFailed, SessionStatusCancelled:
		return true
	default:
		return false
	}
}
