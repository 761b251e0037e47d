package opt

import (
	"math"
	"math/rand"
	"time"
)

// defaultALNSIterations caps the destroy/repair loop when neither a time
// limit nor an iteration limit is set.
const defaultALNSIterations = 1000

// ALNS runs adaptive large neighbourhood search: construction, then
// destroy/repair iterations (random and Shaw removal, greedy and regret-2
// insertion) under simulated annealing acceptance with adaptive operator
// weights, then local search on the best solution found.
// Tuning comes from Options.Adaptive.
type ALNS struct {
	Options
}

func (s *ALNS) Name() string { return SolverALNS }

func (s *ALNS) Solve(p *Problem) (*Solution, error) {
	start := time.Now()
	m := Metrics{Solver: s.Name(), Strategy: strategyOf(s.Strategy)}
	curr, err := seed(p, s.Strategy, &m)
	if err != nil {
		return nil, err
	}
	seedVal := s.Seed
	if seedVal == 0 {
		seedVal = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seedVal))

	currCost := m.InitialCost
	best, bestCost := copyRoutes(curr), currCost

	params := s.Adaptive.Effective()
	remW, insW := params.RemovalWeights, params.InsertionWeights
	temp := params.InitialTemp
	if temp <= 0 {
		temp = 0.01*float64(currCost) + 1
	}
	cool := params.Cooling

	// The destroy/repair loop gets most of the wall clock; the final local
	// search gets the rest.
	var deadline time.Time
	loop := &budget{maxIter: s.MaxIterations}
	if s.TimeLimit > 0 {
		deadline = start.Add(s.TimeLimit)
		loop.deadline = start.Add(s.TimeLimit * 4 / 5)
	} else if s.MaxIterations == 0 {
		loop.maxIter = defaultALNSIterations
	}
	snapshotEvery := 50
	n := p.Nodes()
	for loop.ok() {
		loop.spend()
		m.Iterations++
		k := removalSize(n, rng)
		op := selectOp(remW, rng)
		m.RemovalSelects[op]++
		ip := selectOp(insW, rng)
		m.InsertSelects[ip]++

		var removed []int
		switch op {
		case opRandom:
			removed = pickRandomNodes(curr, k, rng)
		case opShaw:
			removed = shawRemoval(p, curr, k, rng)
		}
		cand := removeNodes(copyRoutes(curr), removed)
		var repaired bool
		switch ip {
		case opGreedy:
			repaired = greedyInsert(p, cand, removed)
		case opRegret:
			repaired = regretInsert(p, cand, removed)
		}
		accepted := false
		if repaired {
			twoOptRoutes(p, cand)
			candCost := totalCost(p.Cost, cand)
			delta := float64(candCost - currCost)
			if delta < 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
				accepted = true
				curr, currCost = cand, candCost
				if candCost < bestCost {
					best, bestCost = copyRoutes(cand), candCost
					remW[op] += 0.1
					insW[ip] += 0.1
					m.Improvements++
				} else {
					remW[op] += 0.01
					insW[ip] += 0.01
					if delta > 0 {
						m.AcceptedWorse++
					}
				}
			}
		}
		if !accepted {
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
		}
		temp *= cool
		if m.Iterations%snapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, WeightSnapshot{Iteration: m.Iterations, Removal: [2]float64{remW[0], remW[1]}, Insertion: [2]float64{insW[0], insW[1]}})
		}
	}
	m.FinalRemovalWeights = [2]float64{remW[0], remW[1]}
	m.FinalInsertionWeights = [2]float64{insW[0], insW[1]}

	m.Moves = improve(p, best, &budget{deadline: deadline, maxIter: s.MaxIterations})
	return finish(p, best, m, start), nil
}
