package projection

import (
	"slices"
	"time"
)

type RecordKind string

const (
	RecordEnter         RecordKind = "enter"
	RecordWithdraw      RecordKind = "withdraw"
	RecordPromote       RecordKind = "promote"
	RecordApprove       RecordKind = "approve"
	RecordApprovalReset RecordKind = "approval-reset"
)

// LifecycleRecord is one entry of an item's upstream history.
type LifecycleRecord struct {
	Kind RecordKind
	At   time.Time
	// ActorID is the approver for RecordApprove.
	ActorID int64
	// Approvers and Targets are the sets recorded at a withdrawal.
	Approvers []int64
	Targets   []int64
}

// ReadyTime derives the earliest promotion instant of an item that last
// entered the queue at anchor. history must be oldest first; currentTargets
// is the item's present content set.
//
// Time already spent queued counts toward MinimumQueued, but at least
// MinimumSinceReady must pass after anchor. Re-entry right after a
// withdrawal may carry a penalty of one day per full week spent withdrawn.
// Content added while withdrawn always voids the credit; a changed approver
// set voids it only with ResetPenaltyOnChange.
func ReadyTime(anchor time.Time, history []LifecycleRecord, currentTargets []int64, r Rules) time.Time {
	var (
		previous     time.Duration
		started      *time.Time
		lastWithdraw *LifecycleRecord
		approvers    []int64
		penalty      time.Duration
	)

	for i := range history {
		rec := history[i]
		switch rec.Kind {
		case RecordEnter:
			at := rec.At
			started = &at
			if i != len(history)-1 || lastWithdraw == nil {
				continue
			}
			if r.ResetPenaltyOnChange && !sameSet(lastWithdraw.Approvers, approvers) {
				previous = 0
			}
			if gained(currentTargets, lastWithdraw.Targets) {
				previous = 0
			} else {
				weeks := int64(rec.At.Sub(lastWithdraw.At) / (7 * Day))
				penalty = min(time.Duration(weeks)*Day, r.PenaltyCap)
			}
		case RecordWithdraw:
			lastWithdraw = &history[i]
			if started != nil {
				previous += rec.At.Sub(*started)
				started = nil
			}
			approvers = nil
		case RecordPromote:
			previous = 0
			started = nil
			lastWithdraw = nil
		case RecordApprove:
			approvers = append(approvers, rec.ActorID)
		case RecordApprovalReset:
			approvers = nil
		}
	}

	timeLeft := r.MinimumQueued - previous
	return anchor.UTC().Add(max(r.MinimumSinceReady, timeLeft) + max(penalty, 0))
}

func sameSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !slices.Contains(b, v) {
			return false
		}
	}
	return true
}

// gained reports whether now holds any id missing from before.
func gained(now, before []int64) bool {
	for _, v := range now {
		if !slices.Contains(before, v) {
			return true
		}
	}
	return false
}
