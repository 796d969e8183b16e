package domain

import (
	"cmp"
	"slices"
)

// Board holds one LaneQueue per lane.
type Board struct {
	Lanes [LaneCount]*LaneQueue
}

func NewBoard() *Board {
	b := &Board{}
	for l := range LaneCount {
		b.Lanes[l] = NewLaneQueue(Lane(l))
	}
	return b
}

// BoardFrom builds a board from flat lists, sorting History by PromoteTime
// and Pending by ReadyTime (ties broken by id). Items on an invalid lane are
// dropped.
func BoardFrom(pending, history []*Item) *Board {
	b := NewBoard()
	for _, it := range history {
		if it.Lane.Valid() {
			b.Lanes[it.Lane].History = append(b.Lanes[it.Lane].History, it)
		}
	}
	for _, it := range pending {
		if it.Lane.Valid() {
			b.Lanes[it.Lane].Pending = append(b.Lanes[it.Lane].Pending, it)
		}
	}
	for _, q := range b.Lanes {
		slices.SortStableFunc(q.History, func(a, c *Item) int {
			return cmp.Or(comparePromote(a, c), cmp.Compare(a.ID, c.ID))
		})
		slices.SortStableFunc(q.Pending, func(a, c *Item) int {
			return cmp.Or(a.ReadyTime.Compare(c.ReadyTime), cmp.Compare(a.ID, c.ID))
		})
	}
	return b
}

func comparePromote(a, c *Item) int {
	switch {
	case a.PromoteTime == nil && c.PromoteTime == nil:
		return 0
	case a.PromoteTime == nil:
		return -1
	case c.PromoteTime == nil:
		return 1
	}
	return a.PromoteTime.Compare(*c.PromoteTime)
}

func (b *Board) Lane(l Lane) *LaneQueue {
	if !l.Valid() {
		return nil
	}
	return b.Lanes[l]
}

// FindPending locates a pending item across all lanes.
func (b *Board) FindPending(id int64) (Lane, int, bool) {
	for _, q := range b.Lanes {
		if idx := q.IndexOfPending(id); idx >= 0 {
			return q.Lane, idx, true
		}
	}
	return 0, -1, false
}

// Get returns the pending or promoted item with the given id.
func (b *Board) Get(id int64) (*Item, bool) {
	for _, it := range b.All() {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

// AllPending returns every pending item, lane by lane, in queue order.
func (b *Board) AllPending() []*Item {
	var out []*Item
	for _, q := range b.Lanes {
		out = append(out, q.Pending...)
	}
	return out
}

// All returns every item on the board, History before Pending per lane.
func (b *Board) All() []*Item {
	var out []*Item
	for _, q := range b.Lanes {
		out = append(out, q.Combined()...)
	}
	return out
}

func (b *Board) Clone() *Board {
	c := &Board{}
	for i, q := range b.Lanes {
		c.Lanes[i] = q.Clone()
	}
	return c
}
