package opt

import "sort"

// DefaultFleetSlack is the number of spare vehicles added on top of the
// capacity lower bound.
const DefaultFleetSlack = 2

// EstimateFleet returns the number of vehicle slots to offer the solver:
// ceil(total/capacity)+slack, raised to the first-fit-decreasing bin count
// when that is larger. Demands exclude the depot. Demands larger than
// capacity are ignored by the bin count; the solver reports them.
func EstimateFleet(demands []int64, capacity int64, slack int) int {
	if len(demands) == 0 || capacity <= 0 {
		return 0
	}
	if slack < 0 {
		slack = 0
	}
	var total int64
	for _, d := range demands {
		total += d
	}
	est := int((total+capacity-1)/capacity) + slack
	if ffd := firstFitDecreasing(demands, capacity); ffd > est {
		est = ffd
	}
	if est < 1 {
		est = 1
	}
	return est
}

// packFirstFit assigns items to bins by first-fit decreasing and returns
// the bins as indices into demands. Ties keep the lower index first so the
// packing is deterministic. Items larger than capacity are left out.
func packFirstFit(demands []int64, capacity int64) [][]int {
	order := make([]int, len(demands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return demands[order[a]] > demands[order[b]] })
	var bins [][]int
	var room []int64
	for _, i := range order {
		d := demands[i]
		if d > capacity {
			continue
		}
		placed := false
		for b := range room {
			if room[b] >= d {
				room[b] -= d
				bins[b] = append(bins[b], i)
				placed = true
				break
			}
		}
		if !placed {
			bins = append(bins, []int{i})
			room = append(room, capacity-d)
		}
	}
	return bins
}

func firstFitDecreasing(demands []int64, capacity int64) int {
	return len(packFirstFit(demands, capacity))
}
