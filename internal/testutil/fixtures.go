package testutil

import (
	"fmt"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
)

// Item options
type ItemOption func(*domain.Item)

func WithOpenIssue() ItemOption {
	return func(it *domain.Item) {
		it.HasOpenIssue = true
	}
}

func WithTitle(title string) ItemOption {
	return func(it *domain.Item) {
		it.Title = title
	}
}

func WithCreator(name string, id int64) ItemOption {
	return func(it *domain.Item) {
		it.Creator = name
		it.CreatorID = id
	}
}

func WithProjection(early, promote time.Time, probability *float64) ItemOption {
	return func(it *domain.Item) {
		e, p := early.UTC(), promote.UTC()
		it.EarlyTime = &e
		it.PromoteTime = &p
		it.Probability = probability
	}
}

func NewPendingItem(id int64, lane domain.Lane, ready time.Time, opts ...ItemOption) *domain.Item {
	it := &domain.Item{
		ID:              id,
		Lane:            lane,
		State:           domain.ItemPending,
		Title:           fmt.Sprintf("Title %d", id),
		Artist:          "Artist",
		Creator:         "creator",
		CreatorID:       1000 + id,
		ReadyTime:       ready.UTC(),
		LastReadyAnchor: ready.UTC().Add(-7 * 24 * time.Hour),
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// NewPromotedItem returns an item already moved to History at the given
// instant.
func NewPromotedItem(id int64, lane domain.Lane, at time.Time, opts ...ItemOption) *domain.Item {
	it := NewPendingItem(id, lane, at.Add(-time.Hour), opts...)
	it.MarkPromoted(at)
	return it
}

func Float(v float64) *float64 {
	return &v
}
