package api

import (
	"net/http"
	"runtime"
	"time"

	"routeplan/internal/buildinfo"
)

// DebugJSON reports build info and non-secret configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build":      buildinfo.Info(),
		"time":       time.Now().UTC().Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
		"config": map[string]any{
			"addr":               c.Addr,
			"solver":             c.Solver,
			"coordinates":        c.Coordinates,
			"workers":            c.Workers,
			"rateRps":            c.RateRPS,
			"rateBurst":          c.RateBurst,
			"hasDatabaseUrl":     c.DatabaseURL != "",
			"hasRedisUrl":        c.RedisURL != "",
			"hasAmqpUrl":         c.AMQPURL != "",
			"signsNotifications": c.AMQPSecret != "",
		},
	})
}
