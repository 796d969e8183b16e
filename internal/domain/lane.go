package domain

import (
	"fmt"
	"strings"
)

// Lane is one of the independent promotion categories. All lanes share the
// same external cadence.
type Lane int

// LaneCount is the fixed number of lanes.
const LaneCount = 4

const (
	LaneStandard Lane = iota
	LaneTaiko
	LaneCatch
	LaneMania
)

var laneNames = [LaneCount]string{"standard", "taiko", "catch", "mania"}

func (l Lane) Valid() bool {
	return l >= 0 && l < LaneCount
}

func (l Lane) String() string {
	if !l.Valid() {
		return fmt.Sprintf("lane(%d)", int(l))
	}
	return laneNames[l]
}

// ParseLane accepts a lane name or its numeric index.
func ParseLane(s string) (Lane, error) {
	for i, name := range laneNames {
		if strings.EqualFold(s, name) || s == fmt.Sprint(i) {
			return Lane(i), nil
		}
	}
	return 0, fmt.Errorf("unknown lane %q", s)
}
