package projection

import (
	"github.com/alexanderramin/rankcast/internal/domain"
)

type laneCounts [domain.LaneCount]int

// AdjustCrossLane recomputes the probability of every still-probabilistic
// pending item with the competing counts of the other lanes on the same
// tick. Items likely to land early are bucketed by their early tick, others
// by their promote time. One pass, no fixed-point iteration.
func AdjustCrossLane(b *domain.Board, r Rules) {
	buckets := make(map[int64]*laneCounts)
	for _, q := range b.Lanes {
		for _, it := range q.Pending {
			if it.EarlyTime == nil || it.PromoteTime == nil {
				continue
			}
			key := it.PromoteTime.Unix()
			if it.Probability != nil && *it.Probability > r.Split {
				key = FloorTick(*it.EarlyTime, r).Unix()
			}
			c, ok := buckets[key]
			if !ok {
				c = &laneCounts{}
				buckets[key] = c
			}
			c[q.Lane]++
		}
	}

	for _, q := range b.Lanes {
		for _, it := range q.Pending {
			if it.Probability == nil || it.EarlyTime == nil || it.PromoteTime == nil {
				continue
			}
			if it.EarlyTime.Equal(*it.PromoteTime) {
				continue
			}
			var others []int
			if c, ok := buckets[FloorTick(*it.EarlyTime, r).Unix()]; ok {
				others = make([]int, 0, domain.LaneCount-1)
				for l, n := range c {
					if domain.Lane(l) != q.Lane {
						others = append(others, n)
					}
				}
			}
			p := PromotionChance(r, SecondsIntoTick(*it.EarlyTime, r), others)
			it.Probability = &p
		}
	}
}
