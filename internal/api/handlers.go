package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"routeplan/internal/integrations/csvfile"
	"routeplan/internal/metrics"
	"routeplan/internal/model"
	"routeplan/internal/notify"
	"routeplan/internal/opt"
	"routeplan/internal/plan"
)

// maxBody bounds an uploaded order table.
const maxBody = 32 << 20

// EventPlanStarted and EventPlanFailed complement the notify event types on
// the plan stream.
const (
	EventPlanStarted = "plan.started"
	EventPlanFailed  = "plan.failed"
)

type planRequest struct {
	Orders  []model.Order `json:"orders"`
	Options *planOptions  `json:"options,omitempty"`
}

// PlansHandler handles POST /v1/plans. The body is either the order CSV
// (Content-Type text/csv) or JSON {orders, options}. Query parameters:
// planId (to subscribe to events before posting), city, store.
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/plans" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := decodePlanRequest(w, r)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			writePlanError(w, r, err)
			return
		}
		writeProblem(w, 400, "Invalid request body", err.Error(), r.URL.Path)
		return
	}
	if err := validatePlanOptions(req.Options); err != nil {
		writeProblem(w, 400, "Invalid plan options", err.Error(), r.URL.Path)
		return
	}
	cfg, err := req.Options.apply(s.Config)
	if err != nil {
		writeProblem(w, 400, "Invalid plan options", err.Error(), r.URL.Path)
		return
	}
	planner, err := plan.NewPlanner(cfg, s.Provider, s.Log)
	if err != nil {
		writeProblem(w, 500, "Planner init failed", err.Error(), r.URL.Path)
		return
	}

	q := r.URL.Query()
	planID := strings.TrimSpace(q.Get("planId"))
	if planID == "" {
		planID = uuid.NewString()
	}
	filter := plan.Filter{City: q.Get("city"), Store: q.Get("store")}
	log := s.Log.With(zap.String("plan_id", planID))

	s.Broker.Publish(planID, Event{Type: EventPlanStarted, Data: map[string]any{"planId": planID, "orders": len(req.Orders)}})
	res, err := planner.Run(r.Context(), req.Orders, filter, metrics.GroupObserver{}, s.groupEvents(planID))
	if err != nil {
		s.Broker.Publish(planID, Event{Type: EventPlanFailed, Data: map[string]any{"planId": planID, "error": err.Error()}})
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			log.Error("plan failed", zap.Error(err))
		}
		writePlanError(w, r, err)
		return
	}
	res.ID = planID
	s.Broker.Publish(planID, Event{Type: notify.TypePlanCompleted, Data: summaryData(planID, res.Summary)})
	if s.Notify != nil {
		s.Notify.Enqueue(notify.NewEvent(notify.TypePlanCompleted, planID, res.Summary))
	}

	w.Header().Set("X-Plan-Id", planID)
	if wantsCSV(r) {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := csvfile.WriteRows(w, res.Rows); err != nil {
			log.Warn("write csv response", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodePlanRequest(w http.ResponseWriter, r *http.Request) (planRequest, error) {
	var req planRequest
	body := http.MaxBytesReader(w, r.Body, maxBody)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "text/csv", "application/csv":
		orders, err := csvfile.ReadOrders(body)
		if err != nil {
			return req, err
		}
		req.Orders = orders
	case "", "application/json":
		dec := json.NewDecoder(body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("decode json: %w", err)
		}
	default:
		return req, fmt.Errorf("unsupported content type %q", mt)
	}
	return req, nil
}

func wantsCSV(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := mime.ParseMediaType(strings.TrimSpace(part))
		if mt == "text/csv" {
			return true
		}
	}
	return false
}

// groupEvents publishes every finished group on the plan stream.
func (s *Server) groupEvents(planID string) plan.Observer {
	return plan.ObserverFunc(func(g plan.GroupResult) {
		s.Broker.Publish(planID, Event{Type: notify.TypeGroupDone, Data: groupData(g)})
	})
}

func groupData(g plan.GroupResult) map[string]any {
	d := map[string]any{
		"city":        g.Key.City,
		"store":       g.Key.Store,
		"serviceArea": g.Key.ServiceArea,
		"status":      string(g.Status),
		"orders":      g.Orders,
		"cancelled":   g.Cancelled,
		"vehicles":    g.Vehicles,
		"routes":      g.Routes,
		"cost":        g.Cost,
		"durationMs":  g.Duration.Milliseconds(),
	}
	if g.Reason != "" {
		d["reason"] = g.Reason
	}
	if g.Solver != "" {
		d["solver"] = g.Solver
	}
	if m := g.Metrics; m != nil {
		d["strategy"] = string(m.Strategy)
		d["initialCost"] = m.InitialCost
		d["iterations"] = m.Iterations
		d["moves"] = m.Moves
		d["improvements"] = m.Improvements
		if m.Packed {
			d["packedSeed"] = true
		}
	}
	return d
}

func summaryData(planID string, sm plan.Summary) map[string]any {
	return map[string]any{
		"planId":     planID,
		"groups":     sm.Groups,
		"solved":     sm.Solved,
		"empty":      sm.Empty,
		"infeasible": sm.Infeasible,
		"failed":     sm.Failed,
		"assigned":   sm.Assigned,
		"routes":     sm.Routes,
		"cost":       sm.Cost,
		"ok":         sm.OK(),
	}
}

// OptimizerConfigHandler returns the effective planning configuration and
// the accepted option values.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{
		"defaults":   s.Config,
		"solvers":    []string{opt.SolverLocalSearch, opt.SolverALNS, opt.SolverGreedy},
		"strategies": []opt.Strategy{opt.PathCheapestArc, opt.CheapestInsertion},
		"scopes":     []plan.Scope{plan.ScopeStore, plan.ScopeServiceArea, plan.ScopeCity},
		"metrics":    []opt.Metric{opt.Euclidean, opt.Haversine},
		"alns":       s.Config.ALNS().Effective(),
	})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	for _, p := range s.Ready {
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
