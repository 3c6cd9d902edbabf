package entity

import "time"

const (
	WebhookDeliveryProcessed int32 = 10
	WebhookDeliveryRejected  int32 = 20
)

// WebhookDelivery records every inbound provider webhook, accepted or
// not. Rejected rows keep the raw payload so mis-timed events can be
// replayed manually.
type WebhookDelivery struct {
	ID uint64

	SessionID *string

	EventType   string
	Signature   string
	SourceAddr  string
	PayloadJSON string

	Status int32
	Error  *string

	CreatedAt time.Time
}
