package projection

import "time"

// FloorTick rounds t down to the enclosing cadence tick.
func FloorTick(t time.Time, r Rules) time.Time {
	step := int64(r.Interval / time.Second)
	s := t.Unix()
	q := s / step
	if s%step < 0 {
		q--
	}
	return time.Unix(q*step, 0).UTC()
}

// CeilTick rounds t up to the next cadence tick. A t exactly on a tick is
// returned unchanged.
func CeilTick(t time.Time, r Rules) time.Time {
	f := FloorTick(t, r)
	if f.Equal(t) {
		return f
	}
	return f.Add(r.Interval)
}

// SecondsIntoTick returns whole seconds elapsed since the floored tick.
func SecondsIntoTick(t time.Time, r Rules) float64 {
	return float64(t.Unix() - FloorTick(t, r).Unix())
}
