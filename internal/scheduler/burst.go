package scheduler

import (
	"math"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/projection"
)

// BurstConfig shapes the short-interval passes run around a cadence
// boundary when promotions are imminent.
type BurstConfig struct {
	Interval time.Duration
	Horizon  time.Duration
	Base     time.Duration
	PerItem  time.Duration
	Max      time.Duration
}

// Burst is a planned run of repeated passes.
type Burst struct {
	Targets  []int64
	Delay    time.Duration
	Duration time.Duration
	Repeats  int
}

// PlanBurst picks, per lane, the head of the queue that is due now or
// likely due within the horizon. ok is false when nothing qualifies.
func PlanBurst(b *domain.Board, now time.Time, cfg BurstConfig, r projection.Rules) (Burst, bool) {
	var (
		targets  []int64
		earliest *time.Time
	)
	for _, q := range b.Lanes {
		picked := 0
		for _, it := range q.Pending {
			if picked >= min(r.RankPerRun, len(q.Pending)) {
				break
			}
			if it.HasOpenIssue {
				continue
			}
			if !due(it, now, cfg.Horizon, r.Split) {
				break
			}
			targets = append(targets, it.ID)
			picked++
			if earliest == nil || it.EarlyTime.Before(*earliest) {
				earliest = it.EarlyTime
			}
		}
	}
	if len(targets) == 0 {
		return Burst{}, false
	}

	delay := max(0, earliest.Sub(now))
	duration := min(cfg.Base+cfg.PerItem*time.Duration(len(targets)), cfg.Max)
	repeats := 1
	if cfg.Interval > 0 && duration > delay {
		repeats = int(math.Ceil(float64(duration-delay)/float64(cfg.Interval))) + 1
	}
	return Burst{Targets: targets, Delay: delay, Duration: duration, Repeats: max(repeats, 1)}, true
}

func due(it *domain.Item, now time.Time, horizon time.Duration, split float64) bool {
	if it.EarlyTime == nil {
		return false
	}
	if !it.EarlyTime.After(now) {
		return true
	}
	return !it.EarlyTime.After(now.Add(horizon)) && it.Probability != nil && *it.Probability > split
}
