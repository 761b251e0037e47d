package opt

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoSolution is returned when no capacity-respecting assignment of every
// order to the available vehicles was found.
var ErrNoSolution = errors.New("no feasible solution")

// Problem is a single-depot CVRP instance. Node 0 is the depot; nodes 1..N
// are orders. Cost and Demand are indexed by node.
type Problem struct {
	Cost     Matrix
	Demand   []int64 // Demand[0] must be 0
	Capacity int64
	Vehicles int
}

// Nodes returns the number of order nodes (excluding the depot).
func (p *Problem) Nodes() int { return len(p.Demand) - 1 }

// Validate reports malformed problems with a descriptive error and
// infeasible ones with an error wrapping ErrNoSolution.
func (p *Problem) Validate() error {
	if p == nil {
		return errors.New("problem: nil")
	}
	n := len(p.Demand)
	if n < 2 {
		return fmt.Errorf("problem: need at least one order node, got %d nodes", n)
	}
	if len(p.Cost) != n {
		return fmt.Errorf("problem: cost matrix has %d rows, want %d", len(p.Cost), n)
	}
	for i, row := range p.Cost {
		if len(row) != n {
			return fmt.Errorf("problem: cost row %d has %d columns, want %d", i, len(row), n)
		}
	}
	if p.Demand[0] != 0 {
		return fmt.Errorf("problem: depot demand must be 0, got %d", p.Demand[0])
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("problem: capacity must be positive, got %d", p.Capacity)
	}
	if p.Vehicles < 1 {
		return fmt.Errorf("problem: need at least one vehicle, got %d", p.Vehicles)
	}
	var total int64
	for i := 1; i < n; i++ {
		d := p.Demand[i]
		if d < 0 {
			return fmt.Errorf("problem: node %d has negative demand %d", i, d)
		}
		if d > p.Capacity {
			return fmt.Errorf("%w: node %d demand %d exceeds vehicle capacity %d", ErrNoSolution, i, d, p.Capacity)
		}
		total += d
	}
	if total > p.Capacity*int64(p.Vehicles) {
		return fmt.Errorf("%w: total demand %d exceeds fleet capacity %d (%d vehicles)", ErrNoSolution, total, p.Capacity*int64(p.Vehicles), p.Vehicles)
	}
	return nil
}

// Solution holds one route per vehicle slot. Routes[v] lists order nodes in
// visiting order without the depot; unused slots are empty.
type Solution struct {
	Routes  [][]int
	Cost    int64
	Metrics Metrics
}

// Used returns the number of non-empty routes.
func (s *Solution) Used() int {
	n := 0
	for _, r := range s.Routes {
		if len(r) > 0 {
			n++
		}
	}
	return n
}

// Metrics records what a solve did.
type Metrics struct {
	Solver        string        `json:"solver"`
	Strategy      Strategy      `json:"strategy"`
	Packed        bool          `json:"packedSeed,omitempty"` // seed came from first-fit decreasing
	InitialCost   int64         `json:"initialCost"`
	FinalCost     int64         `json:"finalCost"`
	Iterations    int           `json:"iterations"` // ALNS destroy/repair iterations
	Moves         int           `json:"moves"`      // improving local search moves applied
	Improvements  int           `json:"improvements"`
	AcceptedWorse int           `json:"acceptedWorse"`
	Elapsed       time.Duration `json:"elapsedNs"`

	RemovalSelects        [2]int           `json:"removalSelects"` // random, shaw
	InsertSelects         [2]int           `json:"insertSelects"`  // greedy, regret2
	FinalRemovalWeights   [2]float64       `json:"finalRemovalWeights"`
	FinalInsertionWeights [2]float64       `json:"finalInsertionWeights"`
	Snapshots             []WeightSnapshot `json:"snapshots,omitempty"`
}

type WeightSnapshot struct {
	Iteration int        `json:"iteration"`
	Removal   [2]float64 `json:"removal"`
	Insertion [2]float64 `json:"insertion"`
}

// routeCost is the depot to depot cost of one route.
func routeCost(c Matrix, r []int) int64 {
	if len(r) == 0 {
		return 0
	}
	total := c[0][r[0]]
	for i := 0; i+1 < len(r); i++ {
		total += c[r[i]][r[i+1]]
	}
	return total + c[r[len(r)-1]][0]
}

func totalCost(c Matrix, routes [][]int) int64 {
	var total int64
	for _, r := range routes {
		total += routeCost(c, r)
	}
	return total
}

func routeLoad(p *Problem, r []int) int64 {
	var l int64
	for _, n := range r {
		l += p.Demand[n]
	}
	return l
}

func copyRoutes(routes [][]int) [][]int {
	out := make([][]int, len(routes))
	for i, r := range routes {
		out[i] = append([]int(nil), r...)
	}
	return out
}

// at returns the node at position i of r, treating both ends as the depot.
func at(r []int, i int) int {
	if i < 0 || i >= len(r) {
		return 0
	}
	return r[i]
}

// budget bounds improvement work. It is only consulted between moves.
type budget struct {
	deadline time.Time // zero means no wall clock limit
	maxIter  int       // 0 means unbounded
	used     int
}

func newBudget(limit time.Duration, maxIter int) *budget {
	b := &budget{maxIter: maxIter}
	if limit > 0 {
		b.deadline = time.Now().Add(limit)
	}
	return b
}

func (b *budget) ok() bool {
	if b.maxIter > 0 && b.used >= b.maxIter {
		return false
	}
	return b.deadline.IsZero() || time.Now().Before(b.deadline)
}

func (b *budget) spend() { b.used++ }

// DemandUnits converts a weight in kilograms to 0.1 kg units, rounding up.
func DemandUnits(kg float64) int64 {
	return int64(math.Ceil(kg*10 - 1e-9))
}

// CapacityUnits converts a capacity in kilograms to 0.1 kg units, rounding
// down, so integer feasibility implies real feasibility.
func CapacityUnits(kg float64) int64 {
	return int64(math.Floor(kg*10 + 1e-9))
}
