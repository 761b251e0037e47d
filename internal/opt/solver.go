package opt

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Solver turns a Problem into a capacity-feasible Solution. Implementations
// are single-threaded and not cancellable once started; they honour the
// budget in their Options between moves.
type Solver interface {
	Name() string
	Solve(p *Problem) (*Solution, error)
}

// Options are shared by all solvers.
type Options struct {
	Strategy      Strategy
	TimeLimit     time.Duration // 0 means no wall clock limit
	MaxIterations int           // 0 means unbounded
	Seed          int64
	Adaptive      ALNSParams // only read by ALNS
}

// ALNSParams tune the adaptive search. Zero values select the defaults.
type ALNSParams struct {
	InitialTemp      float64   `json:"initialTemp"`      // 0 derives from the initial cost
	Cooling          float64   `json:"cooling"`          // per iteration, in (0,1)
	RemovalWeights   []float64 `json:"removalWeights"`   // [random, shaw]
	InsertionWeights []float64 `json:"insertionWeights"` // [greedy, regret2]
}

// DefaultCooling is the per-iteration temperature factor.
const DefaultCooling = 0.995

// DefaultOperatorWeights are the starting removal and insertion weights.
var DefaultOperatorWeights = []float64{1, 1}

// Effective returns the parameters ALNS will actually use.
func (a ALNSParams) Effective() ALNSParams {
	out := ALNSParams{InitialTemp: a.InitialTemp, Cooling: a.Cooling}
	if out.InitialTemp < 0 {
		out.InitialTemp = 0
	}
	if !(out.Cooling > 0 && out.Cooling < 1) {
		out.Cooling = DefaultCooling
	}
	out.RemovalWeights = weightsOr(a.RemovalWeights)
	out.InsertionWeights = weightsOr(a.InsertionWeights)
	return out
}

// Validate rejects parameters that cannot drive the search. Zero values
// are accepted and mean "use the default".
func (a ALNSParams) Validate() error {
	var errs []error
	if a.InitialTemp < 0 || math.IsNaN(a.InitialTemp) || math.IsInf(a.InitialTemp, 0) {
		errs = append(errs, fmt.Errorf("alns initial temperature must be >= 0, got %v", a.InitialTemp))
	}
	if a.Cooling != 0 && !(a.Cooling > 0 && a.Cooling < 1) {
		errs = append(errs, fmt.Errorf("alns cooling must be in (0,1), got %v", a.Cooling))
	}
	for _, w := range []struct {
		name string
		v    []float64
	}{{"removal", a.RemovalWeights}, {"insertion", a.InsertionWeights}} {
		if len(w.v) == 0 {
			continue
		}
		if len(w.v) != 2 {
			errs = append(errs, fmt.Errorf("alns %s weights need 2 values, got %d", w.name, len(w.v)))
			continue
		}
		for _, x := range w.v {
			if !(x > 0) || math.IsInf(x, 0) {
				errs = append(errs, fmt.Errorf("alns %s weights must be positive, got %v", w.name, w.v))
				break
			}
		}
	}
	return errors.Join(errs...)
}

func weightsOr(w []float64) []float64 {
	if len(w) == 2 {
		return []float64{w[0], w[1]}
	}
	return append([]float64(nil), DefaultOperatorWeights...)
}

const (
	SolverLocalSearch = "local_search"
	SolverALNS        = "alns"
	SolverGreedy      = "greedy"
)

// New returns the solver registered under name.
func New(name string, o Options) (Solver, error) {
	switch name {
	case SolverLocalSearch, "":
		return &LocalSearch{Options: o}, nil
	case SolverALNS:
		return &ALNS{Options: o}, nil
	case SolverGreedy:
		return &Greedy{Options: o}, nil
	default:
		return nil, fmt.Errorf("new solver: unknown solver %q", name)
	}
}

// LocalSearch constructs a first solution and improves it with relocate,
// exchange, or-opt and 2-opt moves until a local optimum or the budget.
type LocalSearch struct {
	Options
}

func (s *LocalSearch) Name() string { return SolverLocalSearch }

func (s *LocalSearch) Solve(p *Problem) (*Solution, error) {
	start := time.Now()
	m := Metrics{Solver: s.Name(), Strategy: strategyOf(s.Strategy)}
	routes, err := seed(p, s.Strategy, &m)
	if err != nil {
		return nil, err
	}
	m.Moves = improve(p, routes, newBudget(s.TimeLimit, s.MaxIterations))
	return finish(p, routes, m, start), nil
}

// Greedy only runs construction. It is deterministic.
type Greedy struct {
	Options
}

func (s *Greedy) Name() string { return SolverGreedy }

func (s *Greedy) Solve(p *Problem) (*Solution, error) {
	start := time.Now()
	m := Metrics{Solver: s.Name(), Strategy: strategyOf(s.Strategy)}
	routes, err := seed(p, s.Strategy, &m)
	if err != nil {
		return nil, err
	}
	return finish(p, routes, m, start), nil
}

func seed(p *Problem, st Strategy, m *Metrics) ([][]int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	routes, packed, err := construct(p, st)
	if err != nil {
		return nil, err
	}
	m.Packed = packed
	m.InitialCost = totalCost(p.Cost, routes)
	return routes, nil
}

func finish(p *Problem, routes [][]int, m Metrics, start time.Time) *Solution {
	cost := totalCost(p.Cost, routes)
	m.FinalCost = cost
	m.Elapsed = time.Since(start)
	return &Solution{Routes: routes, Cost: cost, Metrics: m}
}

func strategyOf(s Strategy) Strategy {
	if s == "" {
		return PathCheapestArc
	}
	return s
}
