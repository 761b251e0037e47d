package plan

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"routeplan/internal/config"
	"routeplan/internal/geo"
	"routeplan/internal/logging"
	"routeplan/internal/model"
	"routeplan/internal/opt"
)

// Status is the outcome of one group solve.
type Status string

const (
	StatusSolved     Status = "solved"
	StatusEmpty      Status = "empty"
	StatusInfeasible Status = "infeasible"
	StatusFailed     Status = "failed"
)

// GroupStop is one stop of a solved group in vehicle slot order.
type GroupStop struct {
	OrderID string `json:"orderId"`
	Slot    int    `json:"slot"`
	Seq     int    `json:"sequence"`
}

// GroupResult is the immutable output of one group solve.
type GroupResult struct {
	Key       model.GroupKey `json:"group"`
	Status    Status         `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	Orders    int            `json:"orders"`
	Cancelled int            `json:"cancelled"`
	Vehicles  int            `json:"vehiclesEstimated"`
	Routes    int            `json:"routes"`
	Cost      int64          `json:"cost"`
	Solver    string         `json:"solver,omitempty"`
	Duration  time.Duration  `json:"durationNs"`
	Stops     []GroupStop    `json:"-"`
	Metrics   *opt.Metrics   `json:"metrics,omitempty"`
}

// Observer is told about every finished group. GroupDone is called from
// worker goroutines and must be safe for concurrent use.
type Observer interface {
	GroupDone(r GroupResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(GroupResult)

func (f ObserverFunc) GroupDone(r GroupResult) { f(r) }

// Plan is the result of a run.
type Plan struct {
	ID          string             `json:"planId,omitempty"`
	Groups      []GroupResult      `json:"groups"`
	Assignments []model.Assignment `json:"-"`
	Rows        []model.Row        `json:"rows"`
	Summary     Summary            `json:"summary"`
}

// Summary counts group outcomes.
type Summary struct {
	Groups     int           `json:"groups"`
	Solved     int           `json:"solved"`
	Empty      int           `json:"empty"`
	Infeasible int           `json:"infeasible"`
	Failed     int           `json:"failed"`
	Orders     int           `json:"orders"`
	Cancelled  int           `json:"cancelled"`
	Assigned   int           `json:"assigned"`
	Routes     int           `json:"routes"`
	Cost       int64         `json:"cost"`
	Duration   time.Duration `json:"durationNs"`
}

// OK reports whether every group was solved or legitimately empty.
func (s Summary) OK() bool { return s.Infeasible == 0 && s.Failed == 0 }

func summarize(results []GroupResult, assigned int, d time.Duration) Summary {
	s := Summary{Groups: len(results), Assigned: assigned, Duration: d}
	for _, r := range results {
		s.Orders += r.Orders
		s.Cancelled += r.Cancelled
		switch r.Status {
		case StatusSolved:
			s.Solved++
			s.Routes += r.Routes
			s.Cost += r.Cost
		case StatusEmpty:
			s.Empty++
		case StatusInfeasible:
			s.Infeasible++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Planner runs the per-group pipeline on a bounded worker pool.
type Planner struct {
	Provider       geo.Provider
	Solver         opt.Solver
	Matrix         opt.MatrixOptions
	CapacityKg     float64
	WeightPerOrder float64
	FleetSlack     int
	Workers        int
	Scope          Scope
	Log            *zap.Logger
	Observers      []Observer
}

// NewPlanner builds a Planner from configuration.
func NewPlanner(cfg config.Config, provider geo.Provider, log *zap.Logger) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	solver, err := opt.New(cfg.Solver, opt.Options{
		Strategy:      opt.Strategy(cfg.FirstSolutionStrategy),
		TimeLimit:     cfg.SolverTimeLimit,
		MaxIterations: cfg.MaxIterations,
		Seed:          cfg.Seed,
		Adaptive:      cfg.ALNS(),
	})
	if err != nil {
		return nil, err
	}
	scope, err := ParseScope(cfg.NumberingScope)
	if err != nil {
		return nil, err
	}
	return &Planner{
		Provider:       provider,
		Solver:         solver,
		Matrix:         opt.MatrixOptions{Metric: opt.Metric(cfg.Metric), Scale: cfg.DistanceScale},
		CapacityKg:     cfg.CapacityKg,
		WeightPerOrder: cfg.WeightPerOrder,
		FleetSlack:     cfg.FleetSlack,
		Workers:        cfg.Workers,
		Scope:          scope,
		Log:            logging.OrNop(log),
	}, nil
}

// Run validates orders, solves every group selected by f, numbers routes and
// assembles the output table. A *model.ValidationError or
// *DataIntegrityFault aborts the run; group level problems are reported in
// the group results.
func (p *Planner) Run(ctx context.Context, orders []model.Order, f Filter, obs ...Observer) (*Plan, error) {
	start := time.Now()
	if err := Validate(orders); err != nil {
		return nil, err
	}
	log := logging.OrNop(p.Log)
	groups := Partition(orders, f)
	results := make([]GroupResult, len(groups))
	observers := append(append([]Observer(nil), p.Observers...), obs...)

	workers := p.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range groups {
		i := i
		g.Go(func() error {
			r := p.solveGroup(ctx, groups[i])
			results[i] = r
			fields := []zap.Field{
				zap.String("city", r.Key.City),
				zap.String("store", r.Key.Store),
				zap.String("service_area", r.Key.ServiceArea),
				zap.String("status", string(r.Status)),
				zap.String("reason", r.Reason),
				zap.Int("orders", r.Orders),
				zap.Int("vehicles", r.Vehicles),
				zap.Int("routes", r.Routes),
				zap.Int64("cost", r.Cost),
				zap.Duration("duration", r.Duration),
			}
			if m := r.Metrics; m != nil {
				fields = append(fields,
					zap.String("strategy", string(m.Strategy)),
					zap.Bool("packed_seed", m.Packed),
					zap.Int64("initial_cost", m.InitialCost),
					zap.Int("iterations", m.Iterations),
					zap.Int("moves", m.Moves),
					zap.Int("improvements", m.Improvements),
				)
			}
			log.Info("group planned", fields...)
			for _, o := range observers {
				o.GroupDone(r)
			}
			return nil
		})
	}
	_ = g.Wait()

	scope := p.Scope
	if scope == "" {
		scope = ScopeStore
	}
	assignments := Number(results, scope)
	rows, err := Assemble(assignments, orders)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Groups:      results,
		Assignments: assignments,
		Rows:        rows,
		Summary:     summarize(results, len(assignments), time.Since(start)),
	}, nil
}

func (p *Planner) solveGroup(ctx context.Context, g Group) (res GroupResult) {
	start := time.Now()
	res = GroupResult{Key: g.Key, Orders: len(g.Orders), Cancelled: g.Cancelled}
	if p.Solver != nil {
		res.Solver = p.Solver.Name()
	}
	defer func() { res.Duration = time.Since(start) }()
	fail := func(st Status, err error) GroupResult {
		res.Status = st
		res.Reason = err.Error()
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(StatusFailed, fmt.Errorf("not started: %w", err))
	}
	if len(g.Orders) == 0 {
		res.Status = StatusEmpty
		return res
	}
	if p.Provider == nil || p.Solver == nil {
		return fail(StatusFailed, errors.New("planner: provider and solver are required"))
	}

	points := make([]model.Position, 0, len(g.Orders)+1)
	points = append(points, model.Position{})
	for _, o := range g.Orders {
		pos, err := p.Provider.Position(ctx, o)
		if err != nil {
			return fail(StatusFailed, fmt.Errorf("position order %s: %w", o.OrderID, err))
		}
		points = append(points, pos)
	}
	points[0] = opt.Centroid(points[1:])

	m, err := opt.BuildMatrix(points, p.Matrix)
	if err != nil {
		return fail(StatusFailed, err)
	}
	demand := make([]int64, len(points))
	for i, o := range g.Orders {
		demand[i+1] = opt.DemandUnits(o.WeightOr(p.WeightPerOrder))
	}
	capacity := opt.CapacityUnits(p.CapacityKg)
	res.Vehicles = opt.EstimateFleet(demand[1:], capacity, p.FleetSlack)

	sol, err := p.Solver.Solve(&opt.Problem{Cost: m, Demand: demand, Capacity: capacity, Vehicles: res.Vehicles})
	switch {
	case errors.Is(err, opt.ErrNoSolution):
		return fail(StatusInfeasible, err)
	case err != nil:
		return fail(StatusFailed, err)
	}

	for _, st := range opt.Extract(sol) {
		res.Stops = append(res.Stops, GroupStop{OrderID: g.Orders[st.Node-1].OrderID, Slot: st.Slot, Seq: st.Seq})
	}
	res.Status = StatusSolved
	res.Routes = sol.Used()
	res.Cost = sol.Cost
	res.Metrics = &sol.Metrics
	return res
}
