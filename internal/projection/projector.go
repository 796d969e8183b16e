package projection

import (
	"fmt"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
)

// Project recomputes EarlyTime, PromoteTime and Probability for every
// pending item at or after start. Items before start, and all of History,
// must already carry a PromoteTime. Pending must be sorted by ReadyTime.
//
// Precondition failures return domain.ErrInvariantViolation and leave the
// queue untouched.
func Project(q *domain.LaneQueue, start int, r Rules) error {
	if err := checkProjectable(q, start); err != nil {
		return err
	}

	combined := q.Combined()
	historyLen := len(q.History)
	for i := historyLen + start; i < len(combined); i++ {
		projectAt(combined, i, historyLen, r)
	}
	return nil
}

func checkProjectable(q *domain.LaneQueue, start int) error {
	if start < 0 || start > len(q.Pending) {
		return fmt.Errorf("%w: %s start %d outside [0, %d]", domain.ErrInvariantViolation, q.Lane, start, len(q.Pending))
	}
	if err := q.CheckSorted(); err != nil {
		return err
	}
	for _, it := range q.History {
		if it.PromoteTime == nil {
			return fmt.Errorf("%w: %s history item %d has no promote time", domain.ErrInvariantViolation, q.Lane, it.ID)
		}
	}
	for _, it := range q.Pending[:start] {
		if it.PromoteTime == nil {
			return fmt.Errorf("%w: %s pending item %d before start %d is unprojected", domain.ErrInvariantViolation, q.Lane, it.ID, start)
		}
	}
	return nil
}

func projectAt(combined []*domain.Item, i, historyLen int, r Rules) {
	item := combined[i]

	// Daily cap.
	var compare time.Time
	capped := false
	if c := nthPriorUnflagged(combined, i, r.RankPerDay); c != nil {
		compare = c.PromoteTime.Add(Day)
		capped = true
		if i >= historyLen+r.RankPerDay {
			// Compounding rounding deep in the queue.
			compare = compare.Add(r.Interval)
		}
	}

	early := item.ReadyTime.UTC()
	if capped && compare.After(early) {
		early = compare
	}

	var prob *float64
	if !capped || item.ReadyTime.After(compare) || i < historyLen+r.RankPerDay {
		p := PromotionChance(r, SecondsIntoTick(early, r), nil)
		prob = &p
	}

	promote := CeilTick(early, r)

	if i >= r.RankPerRun && !item.HasOpenIssue {
		recent := recentUnflagged(combined, i, r.RankPerRun)
		if len(recent) > 0 {
			last := FloorTick(*recent[0].PromoteTime, r)
			if promote.Before(last) {
				promote, early = last, last
				prob = zero()
			}
		}
		if len(recent) >= r.RankPerRun && saturated(recent, FloorTick(early, r), r) {
			last := FloorTick(*recent[0].PromoteTime, r)
			if sameTick(recent, r) {
				promote = last.Add(r.Interval)
			} else {
				promote = last
			}
			early = promote
			prob = zero()
		}
	}

	item.EarlyTime = &early
	item.PromoteTime = &promote
	item.Probability = prob
}

// nthPriorUnflagged scans backward from i-1 and returns the n-th item
// without an open issue, or nil.
func nthPriorUnflagged(combined []*domain.Item, i, n int) *domain.Item {
	count := 0
	for j := i - 1; j >= 0; j-- {
		if combined[j].HasOpenIssue {
			continue
		}
		count++
		if count == n {
			return combined[j]
		}
	}
	return nil
}

// recentUnflagged returns up to n items without an open issue before i,
// most recent first.
func recentUnflagged(combined []*domain.Item, i, n int) []*domain.Item {
	out := make([]*domain.Item, 0, n)
	for j := i - 1; j >= 0 && len(out) < n; j-- {
		if !combined[j].HasOpenIssue {
			out = append(out, combined[j])
		}
	}
	return out
}

func saturated(recent []*domain.Item, target time.Time, r Rules) bool {
	for _, it := range recent {
		if FloorTick(*it.PromoteTime, r).Before(target) {
			return false
		}
	}
	return true
}

func sameTick(recent []*domain.Item, r Rules) bool {
	ref := FloorTick(*recent[len(recent)-1].PromoteTime, r)
	for _, it := range recent {
		if !FloorTick(*it.PromoteTime, r).Equal(ref) {
			return false
		}
	}
	return true
}

func zero() *float64 {
	var p float64
	return &p
}

// ProjectBoard projects every lane from scratch and then applies the
// cross-lane correction.
func ProjectBoard(b *domain.Board, r Rules) error {
	for _, q := range b.Lanes {
		if err := Project(q, 0, r); err != nil {
			return fmt.Errorf("projecting %s: %w", q.Lane, err)
		}
	}
	AdjustCrossLane(b, r)
	return nil
}
