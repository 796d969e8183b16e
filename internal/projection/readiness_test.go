package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func enter(at time.Time) LifecycleRecord { return LifecycleRecord{Kind: RecordEnter, At: at} }

func approve(at time.Time, who int64) LifecycleRecord {
	return LifecycleRecord{Kind: RecordApprove, At: at, ActorID: who}
}

func withdraw(at time.Time, approvers, targets []int64) LifecycleRecord {
	return LifecycleRecord{Kind: RecordWithdraw, At: at, Approvers: approvers, Targets: targets}
}

func TestReadyTime(t *testing.T) {
	r := DefaultRules()
	t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	targets := []int64{10, 11}

	requeued := func(withdrawnFor time.Duration, reapprovers ...int64) (time.Time, []LifecycleRecord) {
		out := []LifecycleRecord{approve(t0.Add(-time.Hour), 1), approve(t0.Add(-time.Minute), 2), enter(t0)}
		w := t0.Add(3 * Day)
		out = append(out, withdraw(w, []int64{1, 2}, targets))
		for _, a := range reapprovers {
			out = append(out, approve(w.Add(time.Hour), a))
		}
		back := w.Add(withdrawnFor)
		return back, append(out, enter(back))
	}

	cases := []struct {
		name    string
		rules   func(Rules) Rules
		build   func() (time.Time, []LifecycleRecord)
		targets []int64
		want    func(anchor time.Time) time.Time
	}{
		{
			name:  "first entry waits the full minimum",
			build: func() (time.Time, []LifecycleRecord) { return t0, []LifecycleRecord{enter(t0)} },
			want:  func(a time.Time) time.Time { return a.Add(7 * Day) },
		},
		{
			name:  "credit for time already queued",
			build: func() (time.Time, []LifecycleRecord) { return requeued(2*Day, 1, 2) },
			want:  func(a time.Time) time.Time { return a.Add(4 * Day) },
		},
		{
			name:  "penalty of a day per full week withdrawn",
			build: func() (time.Time, []LifecycleRecord) { return requeued(15*Day, 2, 1) },
			want:  func(a time.Time) time.Time { return a.Add(4*Day + 2*Day) },
		},
		{
			name:  "penalty is capped",
			build: func() (time.Time, []LifecycleRecord) { return requeued(100*7*Day, 1, 2) },
			want:  func(a time.Time) time.Time { return a.Add(4*Day + 7*Day) },
		},
		{
			name:  "approver change resets credit",
			build: func() (time.Time, []LifecycleRecord) { return requeued(2*Day, 1, 3) },
			want:  func(a time.Time) time.Time { return a.Add(7 * Day) },
		},
		{
			name:    "added content resets credit and penalty",
			build:   func() (time.Time, []LifecycleRecord) { return requeued(15*Day, 1, 2) },
			targets: []int64{10, 11, 12},
			want:    func(a time.Time) time.Time { return a.Add(7 * Day) },
		},
		{
			name:    "removed content keeps credit",
			build:   func() (time.Time, []LifecycleRecord) { return requeued(2*Day, 1, 2) },
			targets: []int64{10},
			want:    func(a time.Time) time.Time { return a.Add(4 * Day) },
		},
		{
			name:  "reset rule disabled keeps credit",
			rules: func(r Rules) Rules { r.ResetPenaltyOnChange = false; return r },
			build: func() (time.Time, []LifecycleRecord) { return requeued(2*Day, 7) },
			want:  func(a time.Time) time.Time { return a.Add(4 * Day) },
		},
		{
			name:    "added content resets even with reset rule disabled",
			rules:   func(r Rules) Rules { r.ResetPenaltyOnChange = false; return r },
			build:   func() (time.Time, []LifecycleRecord) { return requeued(15*Day, 7) },
			targets: []int64{10, 11, 12},
			want:    func(a time.Time) time.Time { return a.Add(7 * Day) },
		},
		{
			name: "minimum since ready applies when nearly done",
			build: func() (time.Time, []LifecycleRecord) {
				w := t0.Add(6*Day + 20*time.Hour)
				back := w.Add(time.Hour)
				return back, []LifecycleRecord{enter(t0), withdraw(w, nil, targets), enter(back)}
			},
			want: func(a time.Time) time.Time { return a.Add(Day) },
		},
		{
			name: "prior promotion resets credit",
			build: func() (time.Time, []LifecycleRecord) {
				back := t0.Add(30 * Day)
				return back, []LifecycleRecord{
					enter(t0), withdraw(t0.Add(2*Day), nil, targets), enter(t0.Add(3 * Day)),
					{Kind: RecordPromote, At: t0.Add(8 * Day)}, enter(back),
				}
			},
			want: func(a time.Time) time.Time { return a.Add(7 * Day) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := r
			if tc.rules != nil {
				rules = tc.rules(r)
			}
			tg := targets
			if tc.targets != nil {
				tg = tc.targets
			}
			anchor, history := tc.build()
			assert.Equal(t, tc.want(anchor), ReadyTime(anchor, history, tg, rules))
		})
	}
}
