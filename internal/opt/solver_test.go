package opt

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"routeplan/internal/model"
)

// newProblem places a depot at the centroid of pts and gives every order the
// same demand.
func newProblem(t *testing.T, pts []model.Position, demand, capacity int64, slack int) *Problem {
	t.Helper()
	all := append([]model.Position{Centroid(pts)}, pts...)
	m, err := BuildMatrix(all, MatrixOptions{Metric: Euclidean})
	if err != nil {
		t.Fatalf("BuildMatrix: %v", err)
	}
	d := make([]int64, len(all))
	for i := 1; i < len(d); i++ {
		d[i] = demand
	}
	return &Problem{Cost: m, Demand: d, Capacity: capacity, Vehicles: EstimateFleet(d[1:], capacity, slack)}
}

func randomPoints(n int, seed int64) []model.Position {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]model.Position, n)
	for i := range pts {
		pts[i] = model.Position{Lat: 12.9 + rng.Float64()*0.2, Lon: 77.5 + rng.Float64()*0.2}
	}
	return pts
}

func allSolvers() []Solver {
	o := Options{TimeLimit: 2 * time.Second, MaxIterations: 200, Seed: 7}
	ci := o
	ci.Strategy = CheapestInsertion
	return []Solver{
		&LocalSearch{Options: o},
		&LocalSearch{Options: ci},
		&ALNS{Options: o},
		&Greedy{Options: o},
		&Greedy{Options: ci},
	}
}

// checkSolution verifies capacity, completeness and the reported cost.
func checkSolution(t *testing.T, p *Problem, s *Solution) {
	t.Helper()
	if len(s.Routes) > p.Vehicles {
		t.Fatalf("%d routes for %d vehicles", len(s.Routes), p.Vehicles)
	}
	seen := make([]int, p.Nodes()+1)
	for v, r := range s.Routes {
		if l := routeLoad(p, r); l > p.Capacity {
			t.Fatalf("route %d load %d exceeds capacity %d", v, l, p.Capacity)
		}
		for _, n := range r {
			if n <= 0 || n > p.Nodes() {
				t.Fatalf("route %d holds invalid node %d", v, n)
			}
			seen[n]++
		}
	}
	for n := 1; n <= p.Nodes(); n++ {
		if seen[n] != 1 {
			t.Fatalf("node %d visited %d times", n, seen[n])
		}
	}
	if got := totalCost(p.Cost, s.Routes); got != s.Cost {
		t.Fatalf("reported cost %d, recomputed %d", s.Cost, got)
	}
}

func TestSolveThreeOrdersOneRoute(t *testing.T) {
	pts := randomPoints(3, 1)
	for _, s := range allSolvers() {
		p := newProblem(t, pts, DemandUnits(1.5), CapacityUnits(40), DefaultFleetSlack)
		sol, err := s.Solve(p)
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
		checkSolution(t, p, sol)
		if sol.Used() != 1 {
			t.Fatalf("%s: want 1 route, got %d", s.Name(), sol.Used())
		}
		stops := Extract(sol)
		for i, st := range stops {
			if st.Seq != i+1 {
				t.Fatalf("%s: sequence %v", s.Name(), stops)
			}
		}
	}
}

func TestSolveThirtyOrdersSplits(t *testing.T) {
	pts := randomPoints(30, 2)
	for _, s := range allSolvers() {
		p := newProblem(t, pts, DemandUnits(1.5), CapacityUnits(40), DefaultFleetSlack)
		sol, err := s.Solve(p)
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
		checkSolution(t, p, sol)
		if sol.Used() < 2 {
			t.Fatalf("%s: want at least 2 routes, got %d", s.Name(), sol.Used())
		}
		for _, r := range sol.Routes {
			if len(r) > 26 {
				t.Fatalf("%s: route with %d orders", s.Name(), len(r))
			}
		}
	}
}

func TestSolveIdenticalPositions(t *testing.T) {
	pts := make([]model.Position, 40)
	for i := range pts {
		pts[i] = model.Position{Lat: 12.97, Lon: 77.59}
	}
	for _, s := range allSolvers() {
		p := newProblem(t, pts, DemandUnits(1.5), CapacityUnits(40), DefaultFleetSlack)
		sol, err := s.Solve(p)
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
		checkSolution(t, p, sol)
		if sol.Cost != 0 {
			t.Fatalf("%s: cost %d for coincident points", s.Name(), sol.Cost)
		}
	}
}

func TestSolveOrderHeavierThanCapacity(t *testing.T) {
	pts := randomPoints(4, 3)
	p := newProblem(t, pts, 10, 100, 0)
	p.Demand[2] = 101
	for _, s := range allSolvers() {
		if _, err := s.Solve(p); !errors.Is(err, ErrNoSolution) {
			t.Fatalf("%s: want ErrNoSolution, got %v", s.Name(), err)
		}
	}
}

func TestSolveTooFewVehicles(t *testing.T) {
	pts := randomPoints(3, 4)
	p := newProblem(t, pts, 60, 100, 0)
	p.Vehicles = 2 // total 180 fits 200 but no pair of orders shares a vehicle
	for _, s := range allSolvers() {
		if _, err := s.Solve(p); !errors.Is(err, ErrNoSolution) {
			t.Fatalf("%s: want ErrNoSolution, got %v", s.Name(), err)
		}
	}
}

// lineProblem puts the depot at 0 and node i at xs[i-1] on a line.
func lineProblem(xs []int64, demand []int64, capacity int64, vehicles int) *Problem {
	pos := append([]int64{0}, xs...)
	m := make(Matrix, len(pos))
	for i := range m {
		m[i] = make([]int64, len(pos))
		for j := range m[i] {
			d := pos[i] - pos[j]
			if d < 0 {
				d = -d
			}
			m[i][j] = d
		}
	}
	return &Problem{Cost: m, Demand: append([]int64{0}, demand...), Capacity: capacity, Vehicles: vehicles}
}

func TestConstructFallsBackToPacking(t *testing.T) {
	// Cheapest arc fills the first vehicle with 4+3+2 and strands a 3;
	// first-fit decreasing packs 4+4+2 and 4+3+3.
	p := lineProblem([]int64{1, 2, 3, 10, 11, 12}, []int64{4, 3, 2, 4, 4, 3}, 10, 2)
	if _, err := pathCheapestArc(p); !errors.Is(err, ErrNoSolution) {
		t.Fatalf("path cheapest arc: want ErrNoSolution, got %v", err)
	}
	routes, packed, err := construct(p, PathCheapestArc)
	if err != nil {
		t.Fatal(err)
	}
	if !packed {
		t.Fatal("want first-fit decreasing seed")
	}
	checkSolution(t, p, &Solution{Routes: routes, Cost: totalCost(p.Cost, routes)})

	for _, s := range allSolvers() {
		sol, err := s.Solve(p)
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
		checkSolution(t, p, sol)
	}
}

func TestSolversFeasibleUnderTightPacking(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	o := Options{TimeLimit: time.Second, MaxIterations: 40, Seed: 5}
	ci := o
	ci.Strategy = CheapestInsertion
	solvers := []Solver{
		&LocalSearch{Options: o},
		&LocalSearch{Options: ci},
		&ALNS{Options: o},
		&ALNS{Options: ci},
		&Greedy{Options: o},
		&Greedy{Options: ci},
	}
	for trial := 0; trial < 40; trial++ {
		n := 5 + rng.Intn(40)
		pts := randomPoints(n, int64(100+trial))
		all := append([]model.Position{Centroid(pts)}, pts...)
		m, err := BuildMatrix(all, MatrixOptions{Metric: Euclidean})
		if err != nil {
			t.Fatal(err)
		}
		capacity := CapacityUnits(10)
		d := make([]int64, n+1)
		for i := 1; i <= n; i++ {
			d[i] = DemandUnits(0.5 + rng.Float64()*6)
		}
		// no slack: vehicles is the larger of the sum bound and the packing
		p := &Problem{Cost: m, Demand: d, Capacity: capacity, Vehicles: EstimateFleet(d[1:], capacity, 0)}
		for _, s := range solvers {
			sol, err := s.Solve(p)
			if err != nil {
				t.Fatalf("trial %d (%d orders, %d vehicles) %s/%s: %v", trial, n, p.Vehicles, s.Name(), strategyName(s), err)
			}
			checkSolution(t, p, sol)
		}
	}
}

func strategyName(s Solver) Strategy {
	switch v := s.(type) {
	case *LocalSearch:
		return strategyOf(v.Strategy)
	case *ALNS:
		return strategyOf(v.Strategy)
	case *Greedy:
		return strategyOf(v.Strategy)
	}
	return ""
}

func TestSolveMalformedProblem(t *testing.T) {
	p := &Problem{Cost: Matrix{{0, 1}, {1, 0}}, Demand: []int64{0, 1, 1}, Capacity: 10, Vehicles: 1}
	_, err := (&LocalSearch{}).Solve(p)
	if err == nil || errors.Is(err, ErrNoSolution) {
		t.Fatalf("want descriptive error, got %v", err)
	}
}

func TestLocalSearchNeverWorsensConstruction(t *testing.T) {
	pts := randomPoints(25, 5)
	p := newProblem(t, pts, 40, 200, 1)
	g, err := (&Greedy{}).Solve(p)
	if err != nil {
		t.Fatal(err)
	}
	ls, err := (&LocalSearch{Options: Options{MaxIterations: 500}}).Solve(p)
	if err != nil {
		t.Fatal(err)
	}
	checkSolution(t, p, ls)
	if ls.Cost > g.Cost {
		t.Fatalf("local search %d worse than construction %d", ls.Cost, g.Cost)
	}
	if ls.Metrics.InitialCost != g.Cost {
		t.Fatalf("initial cost %d, want %d", ls.Metrics.InitialCost, g.Cost)
	}
}

func TestLocalSearchRespectsIterationBudget(t *testing.T) {
	pts := randomPoints(40, 6)
	p := newProblem(t, pts, 10, 200, 1)
	sol, err := (&LocalSearch{Options: Options{MaxIterations: 3}}).Solve(p)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Metrics.Moves > 3 {
		t.Fatalf("applied %d moves with a budget of 3", sol.Metrics.Moves)
	}
	checkSolution(t, p, sol)
}

func TestGreedyDeterministic(t *testing.T) {
	pts := randomPoints(20, 8)
	p := newProblem(t, pts, 30, 150, 2)
	a, err := (&Greedy{}).Solve(p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := (&Greedy{}).Solve(p)
	if err != nil {
		t.Fatal(err)
	}
	if a.Cost != b.Cost || len(a.Routes) != len(b.Routes) {
		t.Fatalf("greedy not deterministic: %d vs %d", a.Cost, b.Cost)
	}
	for v := range a.Routes {
		for i := range a.Routes[v] {
			if a.Routes[v][i] != b.Routes[v][i] {
				t.Fatalf("route %d differs", v)
			}
		}
	}
}

func TestPathCheapestArcTieBreaksOnLowestIndex(t *testing.T) {
	// Nodes 1 and 2 are equidistant from the depot.
	p := &Problem{
		Cost: Matrix{
			{0, 5, 5},
			{5, 0, 3},
			{5, 3, 0},
		},
		Demand:   []int64{0, 1, 1},
		Capacity: 10,
		Vehicles: 1,
	}
	routes, err := pathCheapestArc(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(routes[0]) != 2 || routes[0][0] != 1 || routes[0][1] != 2 {
		t.Fatalf("got %v", routes)
	}
}

func TestNewSolver(t *testing.T) {
	for _, name := range []string{SolverLocalSearch, SolverALNS, SolverGreedy} {
		s, err := New(name, Options{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("name %s, want %s", s.Name(), name)
		}
	}
	if _, err := New("exact", Options{}); err == nil {
		t.Fatal("want error for unknown solver")
	}
}

func TestExtractSkipsUnusedSlots(t *testing.T) {
	s := &Solution{Routes: [][]int{{3, 1}, nil, {2}}}
	got := Extract(s)
	want := []Stop{{Node: 3, Slot: 0, Seq: 1}, {Node: 1, Slot: 0, Seq: 2}, {Node: 2, Slot: 2, Seq: 1}}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stop %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}
