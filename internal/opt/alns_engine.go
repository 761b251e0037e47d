package opt

import (
	"math"
	"math/rand"
	"sort"
)

// Destroy and repair operators for ALNS. Operators work on copies of the
// route slice; they never place an order where it would exceed capacity.

const (
	opRandom = 0
	opShaw   = 1
	opGreedy = 0
	opRegret = 1
)

// removalSize draws how many orders one destroy step removes.
func removalSize(n int, rng *rand.Rand) int {
	limit := n / 5
	if limit < 3 {
		limit = 3
	}
	if limit > n {
		limit = n
	}
	return 1 + rng.Intn(limit)
}

func assigned(routes [][]int) []int {
	out := []int{}
	for _, r := range routes {
		out = append(out, r...)
	}
	return out
}

func pickRandomNodes(routes [][]int, k int, rng *rand.Rand) []int {
	all := assigned(routes)
	removed := []int{}
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	return removed
}

// shawRemoval removes a random seed order and the k-1 orders closest to it.
func shawRemoval(p *Problem, routes [][]int, k int, rng *rand.Rand) []int {
	all := assigned(routes)
	if len(all) == 0 {
		return nil
	}
	seedIdx := all[rng.Intn(len(all))]
	rel := make([]int, 0, len(all)-1)
	for _, idx := range all {
		if idx != seedIdx {
			rel = append(rel, idx)
		}
	}
	row := p.Cost[seedIdx]
	sort.Slice(rel, func(i, j int) bool {
		if row[rel[i]] != row[rel[j]] {
			return row[rel[i]] < row[rel[j]]
		}
		return rel[i] < rel[j]
	})
	removed := []int{seedIdx}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i])
	}
	return removed
}

func removeNodes(routes [][]int, removed []int) [][]int {
	if len(removed) == 0 {
		return routes
	}
	rm := map[int]bool{}
	for _, i := range removed {
		rm[i] = true
	}
	out := make([][]int, len(routes))
	for i, r := range routes {
		for _, idx := range r {
			if !rm[idx] {
				out[i] = append(out[i], idx)
			}
		}
	}
	return out
}

// greedyInsert inserts nodes one at a time at the cheapest feasible
// position over all vehicles. It reports false when some node fits nowhere.
func greedyInsert(p *Problem, routes [][]int, nodes []int) bool {
	loads := make([]int64, len(routes))
	for v, r := range routes {
		loads[v] = routeLoad(p, r)
	}
	nodes = append([]int(nil), nodes...)
	for len(nodes) > 0 {
		bestNode, bestPlan, bestPos := -1, -1, -1
		var bestCost int64 = math.MaxInt64
		for ni, idx := range nodes {
			for vi, r := range routes {
				if loads[vi]+p.Demand[idx] > p.Capacity {
					continue
				}
				for pos := 0; pos <= len(r); pos++ {
					if c := insertDelta(p.Cost, r, idx, pos); c < bestCost {
						bestCost, bestNode, bestPlan, bestPos = c, ni, vi, pos
					}
				}
			}
		}
		if bestNode < 0 {
			return false
		}
		idx := nodes[bestNode]
		routes[bestPlan] = insertAt(routes[bestPlan], idx, bestPos)
		loads[bestPlan] += p.Demand[idx]
		nodes = append(nodes[:bestNode], nodes[bestNode+1:]...)
	}
	return true
}

// regretInsert picks, at each step, the node whose best insertion beats its
// best insertion on any other vehicle by the widest margin (regret-2).
func regretInsert(p *Problem, routes [][]int, nodes []int) bool {
	const onlyOption = math.MaxInt64 / 4
	loads := make([]int64, len(routes))
	for v, r := range routes {
		loads[v] = routeLoad(p, r)
	}
	nodes = append([]int(nil), nodes...)
	for len(nodes) > 0 {
		bestNode, bestPlan, bestPos := -1, -1, -1
		var bestRegret, bestCost int64 = -1, math.MaxInt64
		for ni, idx := range nodes {
			var best1, best2 int64 = math.MaxInt64, math.MaxInt64
			bp, bpos := -1, -1
			for vi, r := range routes {
				if loads[vi]+p.Demand[idx] > p.Capacity {
					continue
				}
				var inRoute int64 = math.MaxInt64
				rpos := -1
				for pos := 0; pos <= len(r); pos++ {
					if c := insertDelta(p.Cost, r, idx, pos); c < inRoute {
						inRoute, rpos = c, pos
					}
				}
				if inRoute < best1 {
					best2 = best1
					best1, bp, bpos = inRoute, vi, rpos
				} else if inRoute < best2 {
					best2 = inRoute
				}
			}
			if bp < 0 {
				continue
			}
			regret := int64(onlyOption)
			if best2 != math.MaxInt64 {
				regret = best2 - best1
			}
			if regret > bestRegret || (regret == bestRegret && best1 < bestCost) {
				bestRegret, bestCost = regret, best1
				bestNode, bestPlan, bestPos = ni, bp, bpos
			}
		}
		if bestNode < 0 {
			return false
		}
		idx := nodes[bestNode]
		routes[bestPlan] = insertAt(routes[bestPlan], idx, bestPos)
		loads[bestPlan] += p.Demand[idx]
		nodes = append(nodes[:bestNode], nodes[bestNode+1:]...)
	}
	return true
}

// twoOptRoutes runs intra-route 2-opt to a local optimum.
func twoOptRoutes(p *Problem, routes [][]int) {
	s := &search{p: p, routes: routes}
	for s.twoOpt() {
	}
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
