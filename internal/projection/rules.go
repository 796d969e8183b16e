package projection

import (
	"errors"
	"fmt"
	"time"
)

// Day is the trailing window of the daily promotion cap.
const Day = 24 * time.Hour

// Rules models the external promotion process. The defaults mirror the
// observed behavior of the upstream system.
type Rules struct {
	// RankPerDay bounds promotions per lane in any trailing Day.
	RankPerDay int
	// RankPerRun bounds promotions per lane in one cadence tick.
	RankPerRun int
	// Interval is the cadence tick length, aligned to the Unix epoch.
	Interval time.Duration
	// DelayMin and DelayMax bound the per-item service delay in seconds.
	DelayMin float64
	DelayMax float64
	// Split is the probability above which an item is assumed to land on
	// its early tick.
	Split float64

	MinimumQueued        time.Duration
	MinimumSinceReady    time.Duration
	PenaltyCap           time.Duration
	ResetPenaltyOnChange bool

	ProbabilityDecimals int
}

func DefaultRules() Rules {
	return Rules{
		RankPerDay:           16,
		RankPerRun:           2,
		Interval:             20 * time.Minute,
		DelayMin:             5,
		DelayMax:             120,
		Split:                0.5,
		MinimumQueued:        7 * Day,
		MinimumSinceReady:    Day,
		PenaltyCap:           7 * Day,
		ResetPenaltyOnChange: true,
		ProbabilityDecimals:  5,
	}
}

func (r Rules) Validate() error {
	var errs []error
	if r.RankPerDay < 1 {
		errs = append(errs, fmt.Errorf("rank_per_day must be positive, got %d", r.RankPerDay))
	}
	if r.RankPerRun < 1 {
		errs = append(errs, fmt.Errorf("rank_per_run must be positive, got %d", r.RankPerRun))
	}
	if r.Interval <= 0 || r.Interval%time.Second != 0 {
		errs = append(errs, fmt.Errorf("interval must be a positive whole number of seconds, got %s", r.Interval))
	}
	if r.DelayMin < 0 || r.DelayMax <= r.DelayMin {
		errs = append(errs, fmt.Errorf("delay range [%g, %g] is empty", r.DelayMin, r.DelayMax))
	}
	if r.Split < 0 || r.Split > 1 {
		errs = append(errs, fmt.Errorf("split must be within [0, 1], got %g", r.Split))
	}
	if r.MinimumQueued < 0 || r.MinimumSinceReady < 0 || r.PenaltyCap < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if r.ProbabilityDecimals < 1 || r.ProbabilityDecimals > 15 {
		errs = append(errs, fmt.Errorf("probability_decimals must be within [1, 15], got %d", r.ProbabilityDecimals))
	}
	return errors.Join(errs...)
}
