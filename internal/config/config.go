package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"routeplan/internal/opt"
)

// Config holds planner and service settings. Values come from Defaults,
// then an optional YAML file, then environment variables.
type Config struct {
	// Planning
	CapacityKg            float64       `yaml:"capacity_kg" json:"capacityKg"`
	WeightPerOrder        float64       `yaml:"weight_per_order" json:"weightPerOrder"`
	SolverTimeLimit       time.Duration `yaml:"solver_time_limit" json:"solverTimeLimit"`
	FirstSolutionStrategy string        `yaml:"first_solution_strategy" json:"firstSolutionStrategy"`
	Solver                string        `yaml:"solver" json:"solver"`
	MaxIterations         int           `yaml:"max_iterations" json:"maxIterations"`
	FleetSlack            int           `yaml:"fleet_slack" json:"fleetSlack"`
	NumberingScope        string        `yaml:"numbering_scope" json:"numberingScope"`
	Workers               int           `yaml:"workers" json:"workers"`
	Metric                string        `yaml:"metric" json:"metric"`
	DistanceScale         float64       `yaml:"distance_scale" json:"distanceScale"`
	Coordinates           string        `yaml:"coordinates" json:"coordinates"`
	Seed                  int64         `yaml:"seed" json:"seed"`
	BaseLat               float64       `yaml:"base_lat" json:"baseLat"`
	BaseLon               float64       `yaml:"base_lon" json:"baseLon"`
	ALNSInitialTemp       float64       `yaml:"alns_initial_temp" json:"alnsInitialTemp"`
	ALNSCooling           float64       `yaml:"alns_cooling" json:"alnsCooling"`
	ALNSRemovalWeights    []float64     `yaml:"alns_removal_weights" json:"alnsRemovalWeights,omitempty"`
	ALNSInsertionWeights  []float64     `yaml:"alns_insertion_weights" json:"alnsInsertionWeights,omitempty"`

	// Service
	Addr         string        `yaml:"addr" json:"-"`
	LogLevel     string        `yaml:"log_level" json:"-"`
	DatabaseURL  string        `yaml:"database_url" json:"-"`
	RedisURL     string        `yaml:"redis_url" json:"-"`
	CacheTTL     time.Duration `yaml:"cache_ttl" json:"-"`
	AMQPURL      string        `yaml:"amqp_url" json:"-"`
	AMQPExchange string        `yaml:"amqp_exchange" json:"-"`
	AMQPSecret   string        `yaml:"amqp_signing_secret" json:"-"`
	RateRPS      float64       `yaml:"rate_rps" json:"-"`
	RateBurst    int           `yaml:"rate_burst" json:"-"`
}

var (
	strategies = []string{"path_cheapest_arc", "cheapest_insertion"}
	solvers    = []string{"local_search", "alns", "greedy"}
	scopes     = []string{"store", "service_area", "city"}
	metrics    = []string{"euclidean", "haversine"}
	coordSrcs  = []string{"synthetic", "lookup"}
)

// Defaults are 40 kg vehicles, 1.5 kg per order and a
// one second solve per service area.
func Defaults() Config {
	return Config{
		CapacityKg:            40,
		WeightPerOrder:        1.5,
		SolverTimeLimit:       time.Second,
		FirstSolutionStrategy: "path_cheapest_arc",
		Solver:                "local_search",
		FleetSlack:            2,
		NumberingScope:        "store",
		Workers:               runtime.NumCPU(),
		Metric:                "euclidean",
		DistanceScale:         100000,
		Coordinates:           "synthetic",
		Seed:                  1,
		BaseLat:               12.97,
		BaseLon:               77.59,
		ALNSCooling:           opt.DefaultCooling,
		Addr:                  ":8080",
		LogLevel:              "info",
		CacheTTL:              24 * time.Hour,
		AMQPExchange:          "routeplan",
		RateBurst:             20,
	}
}

// Load reads defaults, then path (when non-empty), then the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("load config: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from environment variables looked up with get.
func (c *Config) ApplyEnv(get func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := get(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, set func(string) error) {
		if v, ok := get(key); ok && strings.TrimSpace(v) != "" {
			if err := set(strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("env %s: %w", key, err))
			}
		}
	}
	float := func(dst *float64) func(string) error {
		return func(s string) error {
			f, err := strconv.ParseFloat(s, 64)
			*dst = f
			return err
		}
	}
	integer := func(dst *int) func(string) error {
		return func(s string) error {
			n, err := strconv.Atoi(s)
			*dst = n
			return err
		}
	}
	weights := func(dst *[]float64) func(string) error {
		return func(s string) error {
			var out []float64
			for _, part := range strings.Split(s, ",") {
				f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil {
					return err
				}
				out = append(out, f)
			}
			*dst = out
			return nil
		}
	}
	duration := func(dst *time.Duration) func(string) error {
		return func(s string) error {
			d, err := time.ParseDuration(s)
			*dst = d
			return err
		}
	}

	num("CAPACITY_KG", float(&c.CapacityKg))
	num("WEIGHT_PER_ORDER", float(&c.WeightPerOrder))
	num("SOLVER_TIME_LIMIT", duration(&c.SolverTimeLimit))
	str("FIRST_SOLUTION_STRATEGY", &c.FirstSolutionStrategy)
	str("SOLVER", &c.Solver)
	num("MAX_ITERATIONS", integer(&c.MaxIterations))
	num("FLEET_SLACK", integer(&c.FleetSlack))
	str("NUMBERING_SCOPE", &c.NumberingScope)
	num("WORKERS", integer(&c.Workers))
	str("DISTANCE_METRIC", &c.Metric)
	num("DISTANCE_SCALE", float(&c.DistanceScale))
	str("COORDINATES", &c.Coordinates)
	num("SOLVER_SEED", func(s string) error {
		n, err := strconv.ParseInt(s, 10, 64)
		c.Seed = n
		return err
	})
	num("ALNS_INITIAL_TEMP", float(&c.ALNSInitialTemp))
	num("ALNS_COOLING", float(&c.ALNSCooling))
	num("ALNS_REMOVAL_WEIGHTS", weights(&c.ALNSRemovalWeights))
	num("ALNS_INSERTION_WEIGHTS", weights(&c.ALNSInsertionWeights))

	if v, ok := get("PORT"); ok && v != "" {
		c.Addr = ":" + v
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	num("CACHE_TTL", duration(&c.CacheTTL))
	str("AMQP_URL", &c.AMQPURL)
	str("AMQP_EXCHANGE", &c.AMQPExchange)
	str("AMQP_SIGNING_SECRET", &c.AMQPSecret)
	num("RATE_RPS", float(&c.RateRPS))
	num("RATE_BURST", integer(&c.RateBurst))
	return errors.Join(errs...)
}

// ALNS returns the adaptive search tuning.
func (c Config) ALNS() opt.ALNSParams {
	return opt.ALNSParams{
		InitialTemp:      c.ALNSInitialTemp,
		Cooling:          c.ALNSCooling,
		RemovalWeights:   c.ALNSRemovalWeights,
		InsertionWeights: c.ALNSInsertionWeights,
	}
}

// Validate rejects settings the planner cannot run with.
func (c Config) Validate() error {
	var errs []error
	if !(c.CapacityKg > 0) {
		errs = append(errs, fmt.Errorf("capacity_kg must be positive, got %v", c.CapacityKg))
	}
	if !(c.WeightPerOrder > 0) {
		errs = append(errs, fmt.Errorf("weight_per_order must be positive, got %v", c.WeightPerOrder))
	}
	if c.SolverTimeLimit < 0 {
		errs = append(errs, fmt.Errorf("solver_time_limit must not be negative, got %v", c.SolverTimeLimit))
	}
	if c.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("max_iterations must not be negative, got %d", c.MaxIterations))
	}
	if c.FleetSlack < 0 {
		errs = append(errs, fmt.Errorf("fleet_slack must not be negative, got %d", c.FleetSlack))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.DistanceScale <= 0 {
		errs = append(errs, fmt.Errorf("distance_scale must be positive, got %v", c.DistanceScale))
	}
	oneOf := func(key, v string, allowed []string) {
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %s)", key, v, strings.Join(allowed, ", ")))
	}
	oneOf("first_solution_strategy", c.FirstSolutionStrategy, strategies)
	oneOf("solver", c.Solver, solvers)
	oneOf("numbering_scope", c.NumberingScope, scopes)
	oneOf("metric", c.Metric, metrics)
	oneOf("coordinates", c.Coordinates, coordSrcs)
	if err := c.ALNS().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RateRPS < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate_rps and rate_burst must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
