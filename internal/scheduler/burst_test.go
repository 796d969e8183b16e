package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/projection"
	"github.com/alexanderramin/rankcast/internal/testutil"
)

var (
	tick0    = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	burstCfg = BurstConfig{
		Interval: 5 * time.Second,
		Horizon:  10 * time.Minute,
		Base:     8 * time.Minute,
		PerItem:  2 * time.Minute,
		Max:      12 * time.Minute,
	}
)

func projected(id int64, lane domain.Lane, early time.Time, prob float64, opts ...testutil.ItemOption) *domain.Item {
	opts = append([]testutil.ItemOption{testutil.WithProjection(early, early, testutil.Float(prob))}, opts...)
	return testutil.NewPendingItem(id, lane, early.Add(-time.Hour), opts...)
}

func TestPlanBurst(t *testing.T) {
	r := projection.DefaultRules()

	tests := []struct {
		name         string
		pending      []*domain.Item
		now          time.Time
		wantOK       bool
		wantTargets  []int64
		wantDelay    time.Duration
		wantDuration time.Duration
		wantRepeats  int
	}{
		{
			name:    "empty board",
			now:     tick0,
			wantOK:  false,
			pending: nil,
		},
		{
			name: "due now",
			now:  tick0,
			pending: []*domain.Item{
				projected(1, domain.LaneStandard, tick0, 0.2),
			},
			wantOK:       true,
			wantTargets:  []int64{1},
			wantDelay:    0,
			wantDuration: 10 * time.Minute,
			wantRepeats:  121,
		},
		{
			name: "likely within horizon",
			now:  tick0.Add(-5 * time.Minute),
			pending: []*domain.Item{
				projected(1, domain.LaneTaiko, tick0, 0.9),
			},
			wantOK:       true,
			wantTargets:  []int64{1},
			wantDelay:    5 * time.Minute,
			wantDuration: 10 * time.Minute,
			wantRepeats:  61,
		},
		{
			name: "unlikely within horizon",
			now:  tick0.Add(-5 * time.Minute),
			pending: []*domain.Item{
				projected(1, domain.LaneTaiko, tick0, 0.3),
			},
			wantOK: false,
		},
		{
			name: "beyond horizon",
			now:  tick0.Add(-time.Hour),
			pending: []*domain.Item{
				projected(1, domain.LaneTaiko, tick0, 0.99),
			},
			wantOK: false,
		},
		{
			name: "caps per lane and skips flagged",
			now:  tick0,
			pending: []*domain.Item{
				projected(1, domain.LaneStandard, tick0.Add(-time.Minute), 0.5, testutil.WithOpenIssue()),
				projected(2, domain.LaneStandard, tick0, 0.5),
				projected(3, domain.LaneStandard, tick0, 0.5),
				projected(4, domain.LaneStandard, tick0, 0.5),
				projected(5, domain.LaneMania, tick0, 0.5),
			},
			wantOK:       true,
			wantTargets:  []int64{2, 3, 5},
			wantDelay:    0,
			wantDuration: 12 * time.Minute,
			wantRepeats:  145,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := domain.BoardFrom(tt.pending, nil)
			got, ok := PlanBurst(b, tt.now, burstCfg, r)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantTargets, got.Targets)
			assert.Equal(t, tt.wantDelay, got.Delay)
			assert.Equal(t, tt.wantDuration, got.Duration)
			assert.Equal(t, tt.wantRepeats, got.Repeats)
		})
	}
}

func TestPlanBurst_DelayPastDurationRunsOnce(t *testing.T) {
	cfg := burstCfg
	cfg.Horizon = time.Hour
	b := domain.BoardFrom([]*domain.Item{projected(1, domain.LaneCatch, tick0, 0.9)}, nil)

	got, ok := PlanBurst(b, tick0.Add(-30*time.Minute), cfg, projection.DefaultRules())
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, got.Delay)
	assert.Equal(t, 1, got.Repeats)
}

func TestPlanBurst_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := projection.DefaultRules()

	for trial := 0; trial < 300; trial++ {
		var pending []*domain.Item
		n := rng.Intn(12)
		for i := 0; i < n; i++ {
			early := tick0.Add(time.Duration(rng.Intn(40)-20) * time.Minute)
			var opts []testutil.ItemOption
			if rng.Intn(5) == 0 {
				opts = append(opts, testutil.WithOpenIssue())
			}
			pending = append(pending, projected(int64(i+1), domain.Lane(rng.Intn(domain.LaneCount)), early, rng.Float64(), opts...))
		}
		b := domain.BoardFrom(pending, nil)

		got, ok := PlanBurst(b, tick0, burstCfg, r)
		if !ok {
			continue
		}
		perLane := map[domain.Lane]int{}
		for _, id := range got.Targets {
			it, found := b.Get(id)
			require.True(t, found)
			assert.False(t, it.HasOpenIssue, "trial %d: flagged target %d", trial, id)
			perLane[it.Lane]++
		}
		for lane, c := range perLane {
			assert.LessOrEqual(t, c, r.RankPerRun, "trial %d lane %s", trial, lane)
		}
		assert.GreaterOrEqual(t, got.Delay, time.Duration(0))
		assert.LessOrEqual(t, got.Duration, burstCfg.Max)
		assert.GreaterOrEqual(t, got.Repeats, 1)
	}
}
