package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"routeplan/internal/plan"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Groups counts planned groups by outcome
	Groups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "routeplan_groups_total", Help: "Planned service-area groups by status."},
		[]string{"status"},
	)
	// SolveSeconds tracks per-group solve time by solver
	SolveSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "routeplan_group_solve_seconds", Help: "Per-group pipeline duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}},
		[]string{"solver"},
	)
	Routes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routeplan_routes_total", Help: "Routes produced by solved groups."},
	)
	OrdersAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routeplan_orders_assigned_total", Help: "Orders placed on a route."},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Groups)
		Registry.MustRegister(SolveSeconds)
		Registry.MustRegister(Routes)
		Registry.MustRegister(OrdersAssigned)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// GroupObserver records every finished group.
type GroupObserver struct{}

func (GroupObserver) GroupDone(r plan.GroupResult) {
	Groups.WithLabelValues(string(r.Status)).Inc()
	solver := r.Solver
	if solver == "" {
		solver = "none"
	}
	SolveSeconds.WithLabelValues(solver).Observe(r.Duration.Seconds())
	if r.Status == plan.StatusSolved {
		Routes.Add(float64(r.Routes))
		OrdersAssigned.Add(float64(len(r.Stops)))
	}
}
