package domain

import (
	"fmt"
	"time"
)

// LaneQueue is the per-lane aggregate: promoted History ascending by
// PromoteTime and Pending ascending by ReadyTime.
type LaneQueue struct {
	Lane    Lane
	History []*Item
	Pending []*Item
}

func NewLaneQueue(l Lane) *LaneQueue {
	return &LaneQueue{Lane: l}
}

// Insert places item into Pending by ReadyTime, scanning from the tail.
// Items with an equal ReadyTime keep arrival order. Returns the index.
func (q *LaneQueue) Insert(item *Item) int {
	idx := len(q.Pending)
	for idx > 0 && q.Pending[idx-1].ReadyTime.After(item.ReadyTime) {
		idx--
	}
	q.Pending = append(q.Pending, nil)
	copy(q.Pending[idx+1:], q.Pending[idx:])
	q.Pending[idx] = item
	return idx
}

func (q *LaneQueue) IndexOfPending(id int64) int {
	for i, it := range q.Pending {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// RemovePending removes the pending item with the given id.
func (q *LaneQueue) RemovePending(id int64) (*Item, int, bool) {
	idx := q.IndexOfPending(id)
	if idx < 0 {
		return nil, -1, false
	}
	item := q.Pending[idx]
	q.Pending = append(q.Pending[:idx], q.Pending[idx+1:]...)
	return item, idx, true
}

// AppendHistory adds a promoted item at the History tail.
func (q *LaneQueue) AppendHistory(item *Item) {
	q.History = append(q.History, item)
}

// Combined returns History followed by Pending in a fresh slice. The items
// themselves are shared.
func (q *LaneQueue) Combined() []*Item {
	out := make([]*Item, 0, len(q.History)+len(q.Pending))
	out = append(out, q.History...)
	return append(out, q.Pending...)
}

// CheckSorted reports an ErrInvariantViolation if Pending is out of
// ReadyTime order.
func (q *LaneQueue) CheckSorted() error {
	for i := 1; i < len(q.Pending); i++ {
		if q.Pending[i].ReadyTime.Before(q.Pending[i-1].ReadyTime) {
			return fmt.Errorf("%w: %s pending[%d] (item %d) ready before pending[%d] (item %d)",
				ErrInvariantViolation, q.Lane, i, q.Pending[i].ID, i-1, q.Pending[i-1].ID)
		}
	}
	return nil
}

// PruneHistory drops promoted items whose PromoteTime is before cutoff and
// returns how many were removed.
func (q *LaneQueue) PruneHistory(cutoff time.Time) int {
	kept := q.History[:0]
	for _, it := range q.History {
		if it.PromoteTime != nil && it.PromoteTime.Before(cutoff) {
			continue
		}
		kept = append(kept, it)
	}
	removed := len(q.History) - len(kept)
	for i := len(kept); i < len(q.History); i++ {
		q.History[i] = nil
	}
	q.History = kept
	return removed
}

func (q *LaneQueue) Clone() *LaneQueue {
	return &LaneQueue{
		Lane:    q.Lane,
		History: cloneItems(q.History),
		Pending: cloneItems(q.Pending),
	}
}

func cloneItems(items []*Item) []*Item {
	if items == nil {
		return nil
	}
	out := make([]*Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
