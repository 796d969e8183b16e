package domain

import "time"

type ItemState string

const (
	ItemPending  ItemState = "pending"
	ItemPromoted ItemState = "promoted"
)

// Item is one unit of work awaiting, or having completed, promotion.
//
// While an item is pending, EarlyTime, PromoteTime and Probability are owned
// by the projector. Once promoted, PromoteTime is the actual promotion
// instant and the other projection fields are nil.
type Item struct {
	ID        int64
	Lane      Lane
	State     ItemState
	Title     string
	Artist    string
	Creator   string
	CreatorID int64

	// ReadyTime is the earliest instant the item may be promoted.
	ReadyTime time.Time
	// LastReadyAnchor is the instant the item last entered the queue.
	LastReadyAnchor time.Time

	EarlyTime   *time.Time
	PromoteTime *time.Time
	// Probability of landing on EarlyTime's tick rather than a later forced
	// tick. Nil means the estimate is not meaningful.
	Probability *float64

	// HasOpenIssue items are excluded from the per-day and per-tick
	// saturation counts.
	HasOpenIssue bool
}

func (it *Item) Pending() bool {
	return it.State == ItemPending
}

// ClearProjection resets the projector-owned fields.
func (it *Item) ClearProjection() {
	it.EarlyTime = nil
	it.PromoteTime = nil
	it.Probability = nil
}

// MarkPromoted moves the item into its terminal promoted state at the given
// instant.
func (it *Item) MarkPromoted(at time.Time) {
	it.ClearProjection()
	at = at.UTC()
	it.State = ItemPromoted
	it.PromoteTime = &at
	it.HasOpenIssue = false
}

// Clone returns a deep copy; pointer fields are not shared.
func (it *Item) Clone() *Item {
	c := *it
	c.EarlyTime = cloneTime(it.EarlyTime)
	c.PromoteTime = cloneTime(it.PromoteTime)
	if it.Probability != nil {
		p := *it.Probability
		c.Probability = &p
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
