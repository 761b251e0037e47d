package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"routeplan/internal/config"
	"routeplan/internal/geo"
	"routeplan/internal/logging"
	"routeplan/internal/metrics"
	"routeplan/internal/notify"
)

type pinger interface{ Ping(ctx context.Context) error }

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Config   config.Config
	Provider geo.Provider
	Broker   EventBroker
	Notify   *notify.Worker
	Log      *zap.Logger
	// Ready is checked by /readyz; typically the coordinate store and Redis.
	Ready []pinger
}

// NewServer creates a Server with an in-memory broker and synthetic
// coordinates. Callers replace fields for production wiring.
func NewServer(cfg config.Config, log *zap.Logger) *Server {
	return &Server{
		Config:   cfg,
		Provider: geo.Synthetic{BaseLat: cfg.BaseLat, BaseLon: cfg.BaseLon},
		Broker:   NewBroker(),
		Log:      logging.OrNop(log),
	}
}

// AddReadiness registers a dependency checked by /readyz.
func (s *Server) AddReadiness(p pinger) { s.Ready = append(s.Ready, p) }

// Handler returns the routed API wrapped in logging, metrics and rate
// limiting middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Planning
	mux.HandleFunc("/v1/plans", s.PlansHandler)
	mux.HandleFunc("/v1/plans/", s.PlanEventsHandler) // /v1/plans/{id}/events
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)

	// Ops
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/vars", s.DebugJSON)

	var h http.Handler = mux
	h = rateLimit(s.Config.RateRPS, s.Config.RateBurst, h)
	h = instrument(h)
	h = logRequests(s.Log, h)
	return h
}
