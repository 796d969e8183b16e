package reconcile

import (
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
)

// itemFields are the persisted-comparable fields of an item.
type itemFields struct {
	state        domain.ItemState
	lane         domain.Lane
	readyTime    time.Time
	earlyTime    *time.Time
	promoteTime  *time.Time
	probability  *float64
	hasOpenIssue bool
}

// Snapshot records the comparable state of every item on a board.
type Snapshot map[int64]itemFields

func TakeSnapshot(b *domain.Board) Snapshot {
	s := make(Snapshot)
	for _, it := range b.All() {
		s[it.ID] = fieldsOf(it)
	}
	return s
}

func fieldsOf(it *domain.Item) itemFields {
	f := itemFields{
		state:        it.State,
		lane:         it.Lane,
		readyTime:    it.ReadyTime,
		hasOpenIssue: it.HasOpenIssue,
	}
	if it.EarlyTime != nil {
		v := *it.EarlyTime
		f.earlyTime = &v
	}
	if it.PromoteTime != nil {
		v := *it.PromoteTime
		f.promoteTime = &v
	}
	if it.Probability != nil {
		v := *it.Probability
		f.probability = &v
	}
	return f
}

func (f itemFields) equal(o itemFields) bool {
	return f.state == o.state &&
		f.lane == o.lane &&
		f.hasOpenIssue == o.hasOpenIssue &&
		f.readyTime.Equal(o.readyTime) &&
		timeEqual(f.earlyTime, o.earlyTime) &&
		timeEqual(f.promoteTime, o.promoteTime) &&
		floatEqual(f.probability, o.probability)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Diff returns the items on b that are new or differ from the snapshot,
// in board order.
func Diff(b *domain.Board, before Snapshot) []*domain.Item {
	var dirty []*domain.Item
	for _, it := range b.All() {
		prev, ok := before[it.ID]
		if !ok || !prev.equal(fieldsOf(it)) {
			dirty = append(dirty, it)
		}
	}
	return dirty
}
