package api

import (
	"fmt"
	"time"

	"routeplan/internal/config"
)

// planOptions are per-request overrides of the planning configuration.
type planOptions struct {
	Solver                string       `json:"solver,omitempty"`
	FirstSolutionStrategy string       `json:"firstSolutionStrategy,omitempty"`
	TimeLimitMs           *int64       `json:"timeLimitMs,omitempty"`
	MaxIterations         *int         `json:"maxIterations,omitempty"`
	CapacityKg            *float64     `json:"capacityKg,omitempty"`
	WeightPerOrder        *float64     `json:"weightPerOrder,omitempty"`
	FleetSlack            *int         `json:"fleetSlack,omitempty"`
	NumberingScope        string       `json:"numberingScope,omitempty"`
	Metric                string       `json:"metric,omitempty"`
	Seed                  *int64       `json:"seed,omitempty"`
	ALNS                  *alnsOptions `json:"alns,omitempty"`
}

type alnsOptions struct {
	InitialTemp      *float64  `json:"initialTemp,omitempty"`
	Cooling          *float64  `json:"cooling,omitempty"`
	RemovalWeights   []float64 `json:"removalWeights,omitempty"`
	InsertionWeights []float64 `json:"insertionWeights,omitempty"`
}

// maxTimeLimit bounds per-group solve time a request may ask for.
const maxTimeLimit = time.Minute

func validatePlanOptions(o *planOptions) error {
	if o == nil {
		return nil
	}
	if o.TimeLimitMs != nil && (*o.TimeLimitMs < 0 || *o.TimeLimitMs > maxTimeLimit.Milliseconds()) {
		return fmt.Errorf("timeLimitMs must be in [0,%d]", maxTimeLimit.Milliseconds())
	}
	if o.MaxIterations != nil && *o.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if o.CapacityKg != nil && !(*o.CapacityKg > 0) {
		return fmt.Errorf("capacityKg must be > 0")
	}
	if o.WeightPerOrder != nil && !(*o.WeightPerOrder > 0) {
		return fmt.Errorf("weightPerOrder must be > 0")
	}
	if o.FleetSlack != nil && *o.FleetSlack < 0 {
		return fmt.Errorf("fleetSlack must be >= 0")
	}
	return nil
}

// apply overlays o on cfg and validates the result, which catches unknown
// solver, strategy, scope and metric names and bad ALNS tuning.
func (o *planOptions) apply(cfg config.Config) (config.Config, error) {
	if o == nil {
		return cfg, nil
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Solver, o.Solver)
	set(&cfg.FirstSolutionStrategy, o.FirstSolutionStrategy)
	set(&cfg.NumberingScope, o.NumberingScope)
	set(&cfg.Metric, o.Metric)
	if o.TimeLimitMs != nil {
		cfg.SolverTimeLimit = time.Duration(*o.TimeLimitMs) * time.Millisecond
	}
	if o.MaxIterations != nil {
		cfg.MaxIterations = *o.MaxIterations
	}
	if o.CapacityKg != nil {
		cfg.CapacityKg = *o.CapacityKg
	}
	if o.WeightPerOrder != nil {
		cfg.WeightPerOrder = *o.WeightPerOrder
	}
	if o.FleetSlack != nil {
		cfg.FleetSlack = *o.FleetSlack
	}
	if o.Seed != nil {
		cfg.Seed = *o.Seed
	}
	if a := o.ALNS; a != nil {
		if a.InitialTemp != nil {
			cfg.ALNSInitialTemp = *a.InitialTemp
		}
		if a.Cooling != nil {
			cfg.ALNSCooling = *a.Cooling
		}
		if a.RemovalWeights != nil {
			cfg.ALNSRemovalWeights = a.RemovalWeights
		}
		if a.InsertionWeights != nil {
			cfg.ALNSInsertionWeights = a.InsertionWeights
		}
	}
	return cfg, cfg.Validate()
}
