package opt

import (
	"errors"
	"fmt"
	"math"
)

// Strategy selects the construction heuristic.
type Strategy string

const (
	PathCheapestArc   Strategy = "path_cheapest_arc"
	CheapestInsertion Strategy = "cheapest_insertion"
)

// construct builds a capacity-feasible initial solution over p.Vehicles
// slots. When the chosen heuristic strands orders it falls back to a
// first-fit-decreasing packing, reporting packed=true; ErrNoSolution is
// returned only when that packing needs more than p.Vehicles bins.
func construct(p *Problem, s Strategy) (routes [][]int, packed bool, err error) {
	switch s {
	case PathCheapestArc, "":
		routes, err = pathCheapestArc(p)
	case CheapestInsertion:
		routes, err = cheapestInsertion(p)
	default:
		return nil, false, fmt.Errorf("construct: unknown strategy %q", s)
	}
	if err == nil || !errors.Is(err, ErrNoSolution) {
		return routes, false, err
	}
	routes, ffdErr := packedRoutes(p)
	if ffdErr != nil {
		return nil, false, fmt.Errorf("%w; %v", err, ffdErr)
	}
	return routes, true, nil
}

// packedRoutes assigns orders to vehicles by first-fit decreasing on demand
// and orders each bin by nearest neighbour from the depot.
func packedRoutes(p *Problem) ([][]int, error) {
	bins := packFirstFit(p.Demand[1:], p.Capacity)
	if len(bins) > p.Vehicles {
		return nil, fmt.Errorf("first-fit decreasing needs %d vehicles, have %d", len(bins), p.Vehicles)
	}
	routes := make([][]int, p.Vehicles)
	for v, bin := range bins {
		left := make([]int, len(bin))
		for i, idx := range bin {
			left[i] = idx + 1
		}
		cur := 0
		for len(left) > 0 {
			bi := 0
			for i := 1; i < len(left); i++ {
				if p.Cost[cur][left[i]] < p.Cost[cur][left[bi]] {
					bi = i
				}
			}
			cur = left[bi]
			routes[v] = append(routes[v], cur)
			left = append(left[:bi], left[bi+1:]...)
		}
	}
	return routes, nil
}

// pathCheapestArc fills vehicles one at a time, extending the current route
// end with the cheapest arc to an unvisited order that still fits.
func pathCheapestArc(p *Problem) ([][]int, error) {
	n := p.Nodes()
	visited := make([]bool, n+1)
	routes := make([][]int, p.Vehicles)
	left := n
	for v := 0; v < p.Vehicles && left > 0; v++ {
		cur, load := 0, int64(0)
		for {
			next := -1
			var best int64 = math.MaxInt64
			for j := 1; j <= n; j++ {
				if visited[j] || load+p.Demand[j] > p.Capacity {
					continue
				}
				if c := p.Cost[cur][j]; c < best {
					best, next = c, j
				}
			}
			if next < 0 {
				break
			}
			routes[v] = append(routes[v], next)
			visited[next] = true
			load += p.Demand[next]
			cur = next
			left--
		}
	}
	if left > 0 {
		return nil, fmt.Errorf("%w: %d orders left unplaced by %s over %d vehicles", ErrNoSolution, left, PathCheapestArc, p.Vehicles)
	}
	return routes, nil
}

// cheapestInsertion repeatedly inserts the (order, vehicle, position) with
// the lowest marginal cost that respects capacity.
func cheapestInsertion(p *Problem) ([][]int, error) {
	n := p.Nodes()
	visited := make([]bool, n+1)
	routes := make([][]int, p.Vehicles)
	loads := make([]int64, p.Vehicles)
	for left := n; left > 0; left-- {
		bn, bv, bpos := -1, -1, -1
		var best int64 = math.MaxInt64
		for j := 1; j <= n; j++ {
			if visited[j] {
				continue
			}
			for v, r := range routes {
				if loads[v]+p.Demand[j] > p.Capacity {
					continue
				}
				for pos := 0; pos <= len(r); pos++ {
					if d := insertDelta(p.Cost, r, j, pos); d < best {
						best, bn, bv, bpos = d, j, v, pos
					}
				}
			}
		}
		if bn < 0 {
			return nil, fmt.Errorf("%w: %d orders left unplaced by %s over %d vehicles", ErrNoSolution, left, CheapestInsertion, p.Vehicles)
		}
		routes[bv] = insertAt(routes[bv], bn, bpos)
		loads[bv] += p.Demand[bn]
		visited[bn] = true
	}
	return routes, nil
}

// insertDelta is the cost change of inserting node x before position pos.
func insertDelta(c Matrix, r []int, x, pos int) int64 {
	a, b := at(r, pos-1), at(r, pos)
	return c[a][x] + c[x][b] - c[a][b]
}

func insertAt(r []int, x, pos int) []int {
	r = append(r, 0)
	copy(r[pos+1:], r[pos:])
	r[pos] = x
	return r
}
