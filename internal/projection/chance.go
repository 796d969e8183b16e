package projection

import "math"

// positions is the number of queue positions the external run can place a
// lane in. One per lane.
const positions = 4

// PromotionChance estimates the probability that an item secondsIntoTick
// past its tick boundary is promoted in that tick rather than the next.
//
// Every item ahead in the run adds a service delay uniform on
// [DelayMin, DelayMax]. The lane may occupy any of four positions; others
// holds the per-lane counts of competing items (other lanes only). A nil
// others means no competitors are known and only the lane's own position
// contributes. The result is rounded to r.ProbabilityDecimals.
//
// The estimate ignores correlation between lanes that collide on timing.
func PromotionChance(r Rules, secondsIntoTick float64, others []int) float64 {
	memo := make(map[int]float64)
	value := func(total int) float64 {
		if v, ok := memo[total]; ok {
			return v
		}
		x := (secondsIntoTick - float64(total)*r.DelayMin) / (r.DelayMax - r.DelayMin)
		v := 1 - IrwinHallCDF(total, x)
		memo[total] = v
		return v
	}

	var sum float64
	for pos := 1; pos <= positions; pos++ {
		sums := permSums(pos, others)
		var posSum float64
		for _, s := range sums {
			posSum += value(pos + s)
		}
		sum += posSum / float64(len(sums))
	}
	return roundTo(sum/positions, r.ProbabilityDecimals)
}

// permSums lists the competitor counts that may precede a lane at pos.
func permSums(pos int, others []int) []int {
	if len(others) == 0 {
		return []int{0}
	}
	switch pos {
	case 2:
		return others
	case 3:
		// Ordered pairs of distinct lanes.
		var out []int
		for i := range others {
			for j := range others {
				if i != j {
					out = append(out, others[i]+others[j])
				}
			}
		}
		if len(out) == 0 {
			return []int{others[0]}
		}
		return out
	case 4:
		total := 0
		for _, c := range others {
			total += c
		}
		return []int{total}
	}
	return []int{0}
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	v = math.Round(v*p) / p
	return math.Min(1, math.Max(0, v))
}
