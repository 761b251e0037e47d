package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"routeplan/internal/config"
	"routeplan/internal/geo"
	"routeplan/internal/model"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.SolverTimeLimit = 500 * time.Millisecond
	cfg.MaxIterations = 200
	cfg.Workers = 4
	return cfg
}

func newTestPlanner(t *testing.T, cfg config.Config, p geo.Provider) *Planner {
	t.Helper()
	if p == nil {
		p = geo.NewSynthetic()
	}
	pl, err := NewPlanner(cfg, p, nil)
	require.NoError(t, err)
	return pl
}

func area(n int, start int, city, store, sa string) []model.Order {
	out := make([]model.Order, n)
	for i := range out {
		id := strconv.Itoa(start + i)
		out[i] = model.Order{OrderID: id, Pincode: fmt.Sprintf("5600%02d", i%7), City: city, Store: store, ServiceArea: sa, Status: "Pending", CustomerName: "C" + id, Address: "A" + id}
	}
	return out
}

type recorder struct {
	mu  sync.Mutex
	got []GroupResult
}

func (r *recorder) GroupDone(g GroupResult) {
	r.mu.Lock()
	r.got = append(r.got, g)
	r.mu.Unlock()
}

func TestRunThreeOrdersSingleRoute(t *testing.T) {
	pl := newTestPlanner(t, testConfig(), nil)
	orders := area(3, 1, "Bengaluru", "Koramangala DC", "SA-1")
	plan, err := pl.Run(context.Background(), orders, Filter{})
	require.NoError(t, err)
	require.Len(t, plan.Groups, 1)
	assert.Equal(t, StatusSolved, plan.Groups[0].Status)
	assert.Equal(t, 1, plan.Groups[0].Routes)
	require.Len(t, plan.Rows, 3)
	for i, r := range plan.Rows {
		assert.Equal(t, "Koramangala DC/CEE_1", r.Route)
		assert.Equal(t, i+1, r.Sequence)
	}
	assert.True(t, plan.Summary.OK())
}

func TestRunSplitsOverCapacity(t *testing.T) {
	for _, solver := range []string{"local_search", "alns", "greedy"} {
		t.Run(solver, func(t *testing.T) {
			cfg := testConfig()
			cfg.Solver = solver
			pl := newTestPlanner(t, cfg, nil)
			orders := area(30, 100, "Bengaluru", "Koramangala DC", "SA-1")
			plan, err := pl.Run(context.Background(), orders, Filter{})
			require.NoError(t, err)
			g := plan.Groups[0]
			require.Equal(t, StatusSolved, g.Status, g.Reason)
			assert.GreaterOrEqual(t, g.Routes, 2)

			perRoute := map[string][]int{}
			seen := map[string]int{}
			for _, r := range plan.Rows {
				perRoute[r.Route] = append(perRoute[r.Route], r.Sequence)
				seen[r.OrderID]++
			}
			assert.Len(t, seen, 30, "every active order is assigned")
			for route, seqs := range perRoute {
				assert.LessOrEqual(t, float64(len(seqs))*1.5, 40.0, route)
				for i, s := range seqs {
					assert.Equal(t, i+1, s, "sequence on %s", route)
				}
			}
			// route numbers are contiguous within the store
			for n := 1; n <= len(perRoute); n++ {
				_, ok := perRoute["Koramangala DC/CEE_"+strconv.Itoa(n)]
				assert.True(t, ok, "missing route %d", n)
			}
		})
	}
}

func TestRunExplicitZeroWeight(t *testing.T) {
	defaulted := area(60, 1, "Blr", "S1", "defaulted")
	zero := area(60, 100, "Blr", "S1", "zero")
	for i := range zero {
		zero[i].Weight = model.Kg(0)
	}

	pl := newTestPlanner(t, testConfig(), nil)
	plan, err := pl.Run(context.Background(), append(defaulted, zero...), Filter{})
	require.NoError(t, err)

	byArea := map[string]GroupResult{}
	for _, g := range plan.Groups {
		byArea[g.Key.ServiceArea] = g
	}
	// 60 x 1.5 kg over 40 kg vehicles: ceil(90/40)+2
	assert.Equal(t, 5, byArea["defaulted"].Vehicles)
	// zero-weight orders add no load, only the slack remains
	assert.Equal(t, 2, byArea["zero"].Vehicles)
	assert.Equal(t, StatusSolved, byArea["zero"].Status)
	assert.Equal(t, 60, byArea["zero"].Orders)
}

func TestRunStatuses(t *testing.T) {
	orders := area(4, 1, "Blr", "S1", "ok")
	cancelled := area(2, 50, "Blr", "S1", "gone")
	for i := range cancelled {
		cancelled[i].Status = "cancelled"
	}
	heavy := area(2, 70, "Blr", "S1", "heavy")
	heavy[0].Weight = model.Kg(55)
	orders = append(append(orders, cancelled...), heavy...)

	rec := &recorder{}
	pl := newTestPlanner(t, testConfig(), nil)
	plan, err := pl.Run(context.Background(), orders, Filter{}, rec)
	require.NoError(t, err)

	byArea := map[string]GroupResult{}
	for _, g := range plan.Groups {
		byArea[g.Key.ServiceArea] = g
	}
	assert.Equal(t, StatusSolved, byArea["ok"].Status)
	assert.Equal(t, StatusEmpty, byArea["gone"].Status)
	assert.Equal(t, 2, byArea["gone"].Cancelled)
	assert.Equal(t, StatusInfeasible, byArea["heavy"].Status)
	assert.Contains(t, byArea["heavy"].Reason, "exceeds vehicle capacity")

	assert.Len(t, rec.got, 3)
	assert.Equal(t, 1, plan.Summary.Solved)
	assert.Equal(t, 1, plan.Summary.Empty)
	assert.Equal(t, 1, plan.Summary.Infeasible)
	assert.False(t, plan.Summary.OK())
	assert.Len(t, plan.Rows, 4, "cancelled and infeasible orders produce no rows")
}

type failing struct{}

func (failing) Position(context.Context, model.Order) (model.Position, error) {
	return model.Position{}, errors.New("geocoder down")
}

func TestRunProviderFailureIsGroupFailure(t *testing.T) {
	pl := newTestPlanner(t, testConfig(), failing{})
	plan, err := pl.Run(context.Background(), area(3, 1, "Blr", "S1", "A"), Filter{})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, plan.Groups[0].Status)
	assert.Contains(t, plan.Groups[0].Reason, "geocoder down")
}

func TestRunCancelledContext(t *testing.T) {
	pl := newTestPlanner(t, testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan, err := pl.Run(ctx, append(area(3, 1, "Blr", "S1", "A"), area(3, 10, "Blr", "S1", "B")...), Filter{})
	require.NoError(t, err)
	for _, g := range plan.Groups {
		assert.Equal(t, StatusFailed, g.Status)
		assert.True(t, strings.Contains(g.Reason, context.Canceled.Error()))
	}
}

func TestRunValidationErrorAttemptsNoGroups(t *testing.T) {
	orders := area(3, 1, "Blr", "S1", "A")
	orders[1].OrderID = ""
	rec := &recorder{}
	pl := newTestPlanner(t, testConfig(), nil)
	plan, err := pl.Run(context.Background(), orders, Filter{}, rec)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Nil(t, plan)
	assert.Empty(t, rec.got)
}

func TestRunDuplicateIDsFault(t *testing.T) {
	orders := area(3, 1, "Blr", "S1", "A")
	dup := orders[0]
	dup.Address = "somewhere else"
	orders = append(orders, dup)
	pl := newTestPlanner(t, testConfig(), nil)
	_, err := pl.Run(context.Background(), orders, Filter{})
	var fault *DataIntegrityFault
	require.True(t, errors.As(err, &fault), "got %v", err)
	assert.Equal(t, "1", fault.Mismatches[0].OrderID)
	assert.Equal(t, 2, fault.Mismatches[0].Matches)
}

func TestRunIdenticalPositions(t *testing.T) {
	orders := area(30, 1, "Blr", "S1", "A")
	for i := range orders {
		orders[i].Pincode = "560001"
		orders[i].OrderID = strconv.Itoa(i * 7700) // same id%100 and id%77
	}
	pl := newTestPlanner(t, testConfig(), nil)
	plan, err := pl.Run(context.Background(), orders, Filter{})
	require.NoError(t, err)
	require.Equal(t, StatusSolved, plan.Groups[0].Status)
	assert.Len(t, plan.Rows, 30)
	assert.Zero(t, plan.Groups[0].Cost)
}

func TestRunNumberingAcrossAreas(t *testing.T) {
	orders := append(area(30, 1, "Blr", "S1", "A"), area(30, 100, "Blr", "S1", "B")...)
	cfg := testConfig()
	cfg.Solver = "greedy"
	pl := newTestPlanner(t, cfg, nil)
	plan, err := pl.Run(context.Background(), orders, Filter{})
	require.NoError(t, err)
	labels := map[string]bool{}
	for _, r := range plan.Rows {
		labels[r.Route] = true
	}
	total := plan.Groups[0].Routes + plan.Groups[1].Routes
	assert.Len(t, labels, total, "store scope numbers routes across service areas")
	assert.True(t, labels["S1/CEE_"+strconv.Itoa(total)])
}

func TestRunReportsSolverMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := testConfig()
	cfg.Solver = "alns"
	cfg.MaxIterations = 30
	pl, err := NewPlanner(cfg, geo.NewSynthetic(), zap.New(core))
	require.NoError(t, err)

	plan, err := pl.Run(context.Background(), area(12, 1, "Blr", "S1", "A"), Filter{})
	require.NoError(t, err)
	require.Len(t, plan.Groups, 1)
	m := plan.Groups[0].Metrics
	require.NotNil(t, m)
	assert.Equal(t, 30, m.Iterations)

	entries := logs.FilterMessage("group planned").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, m.InitialCost, fields["initial_cost"])
	assert.Equal(t, int64(30), fields["iterations"])
	assert.Contains(t, fields, "moves")
	assert.Equal(t, "path_cheapest_arc", fields["strategy"])

	b, err := json.Marshal(plan.Groups[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"initialCost":`)
	assert.Contains(t, string(b), `"iterations":30`)
}
