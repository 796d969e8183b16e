package domain

import "time"

type EventType string

const (
	EventEnterQueue EventType = "enter-queue"
	EventWithdraw   EventType = "withdraw"
	EventPromote    EventType = "promote"
)

// Event is one lifecycle change reported by the external system. IDs are
// monotonic; events must be applied in ID order.
type Event struct {
	ID        int64
	ItemID    int64
	Type      EventType
	Timestamp time.Time
}

// Cursor records the last event ID applied to the persisted state.
type Cursor struct {
	LastEventID int64
	UpdatedAt   time.Time
}
