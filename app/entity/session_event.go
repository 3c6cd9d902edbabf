package entity

import "time"

type SessionEvent struct {
	ID uint64

	SessionID string

	EventType string

	OldStatus *string
	NewStatus string

	Detail *string

	CreatedAt time.Time
}
