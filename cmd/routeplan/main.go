// Command routeplan plans delivery routes for an order CSV and writes the
// route table as CSV.
//
// Exit status is 0 when every group was solved or empty, 1 on a fatal error
// (bad flags or config, unreadable input, data integrity fault) and 2 when
// any group was infeasible or failed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"routeplan/internal/config"
	"routeplan/internal/geo"
	"routeplan/internal/integrations"
	"routeplan/internal/integrations/csvfile"
	"routeplan/internal/logging"
	"routeplan/internal/model"
	"routeplan/internal/plan"
	"routeplan/internal/store"
)

const (
	exitOK         = 0
	exitFatal      = 1
	exitIncomplete = 2
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	input      string
	output     string
	pincodes   string
	summary    string
	city       string
	store      string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("routeplan", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVarP(&o.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "YAML config file")
	fs.StringVarP(&o.input, "input", "i", "-", "order CSV, - for stdin")
	fs.StringVarP(&o.output, "output", "o", "-", "plan CSV, - for stdout")
	fs.StringVar(&o.pincodes, "pincodes", "", "pincode,lat,lon CSV; implies --coordinates=lookup")
	fs.StringVar(&o.summary, "summary", "", "write per-group results as JSON to this file")
	fs.StringVar(&o.city, "city", "", "only plan this city")
	fs.StringVar(&o.store, "store", "", "only plan this store (dc_name)")

	solver := fs.String("solver", "", "local_search, alns or greedy")
	strategy := fs.String("strategy", "", "first solution strategy: path_cheapest_arc or cheapest_insertion")
	timeLimit := fs.Duration("time-limit", 0, "solver time limit per service area")
	maxIter := fs.Int("max-iterations", 0, "solver iteration cap, 0 for none")
	capacity := fs.Float64("capacity-kg", 0, "vehicle capacity in kg")
	weight := fs.Float64("weight-per-order", 0, "weight of an order without weight_kg")
	slack := fs.Int("fleet-slack", 0, "vehicles added to the capacity bound")
	scope := fs.String("scope", "", "route numbering scope: store, service_area or city")
	metric := fs.String("metric", "", "distance metric: euclidean or haversine")
	workers := fs.Int("workers", 0, "service areas solved in parallel")
	seed := fs.Int64("seed", 0, "solver random seed")
	alnsTemp := fs.Float64("alns-initial-temp", 0, "ALNS starting temperature, 0 derives it from the first solution")
	alnsCooling := fs.Float64("alns-cooling", 0, "ALNS per-iteration cooling factor in (0,1)")
	alnsRemoval := fs.Float64Slice("alns-removal-weights", nil, "ALNS starting weights for random,shaw removal")
	alnsInsertion := fs.Float64Slice("alns-insertion-weights", nil, "ALNS starting weights for greedy,regret-2 insertion")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitFatal
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
	changed := fs.Changed
	if changed("solver") {
		cfg.Solver = *solver
	}
	if changed("strategy") {
		cfg.FirstSolutionStrategy = *strategy
	}
	if changed("time-limit") {
		cfg.SolverTimeLimit = *timeLimit
	}
	if changed("max-iterations") {
		cfg.MaxIterations = *maxIter
	}
	if changed("capacity-kg") {
		cfg.CapacityKg = *capacity
	}
	if changed("weight-per-order") {
		cfg.WeightPerOrder = *weight
	}
	if changed("fleet-slack") {
		cfg.FleetSlack = *slack
	}
	if changed("scope") {
		cfg.NumberingScope = *scope
	}
	if changed("metric") {
		cfg.Metric = *metric
	}
	if changed("workers") {
		cfg.Workers = *workers
	}
	if changed("seed") {
		cfg.Seed = *seed
	}
	if changed("alns-initial-temp") {
		cfg.ALNSInitialTemp = *alnsTemp
	}
	if changed("alns-cooling") {
		cfg.ALNSCooling = *alnsCooling
	}
	if changed("alns-removal-weights") {
		cfg.ALNSRemovalWeights = *alnsRemoval
	}
	if changed("alns-insertion-weights") {
		cfg.ALNSInsertionWeights = *alnsInsertion
	}
	if changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if o.pincodes != "" {
		cfg.Coordinates = "lookup"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}

	log, err := logging.NewDevelopment(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
	defer func() { _ = log.Sync() }()

	if err := planFile(ctx, cfg, o, stdin, stdout, log); err != nil {
		var incomplete *incompleteError
		if errors.As(err, &incomplete) {
			log.Warn("plan incomplete", zap.Int("infeasible", incomplete.Infeasible), zap.Int("failed", incomplete.Failed))
			return exitIncomplete
		}
		log.Error("plan failed", zap.Error(err))
		return exitFatal
	}
	return exitOK
}

type incompleteError struct{ plan.Summary }

func (e *incompleteError) Error() string {
	return fmt.Sprintf("%d infeasible and %d failed of %d groups", e.Infeasible, e.Failed, e.Groups)
}

func planFile(ctx context.Context, cfg config.Config, o options, stdin io.Reader, stdout io.Writer, log *zap.Logger) error {
	provider, closeStore, err := positions(ctx, cfg, o.pincodes)
	if err != nil {
		return err
	}
	defer closeStore()
	planner, err := plan.NewPlanner(cfg, provider, log)
	if err != nil {
		return err
	}

	var src integrations.OrderSource
	if o.input == "-" {
		orders, err := csvfile.ReadOrders(stdin)
		if err != nil {
			return err
		}
		src = integrations.Static(orders)
	} else {
		src = csvfile.Adapter{Path: o.input}
	}
	orders, err := src.FetchOrders(ctx)
	if err != nil {
		return err
	}
	log.Info("orders loaded", zap.String("source", src.Name()), zap.Int("orders", len(orders)))

	res, err := planner.Run(ctx, orders, plan.Filter{City: o.city, Store: o.store})
	if err != nil {
		return err
	}
	if err := writeOutput(o.output, stdout, res.Rows); err != nil {
		return err
	}
	if o.summary != "" {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		if err := os.WriteFile(o.summary, b, 0o644); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	sm := res.Summary
	log.Info("plan done",
		zap.Int("groups", sm.Groups),
		zap.Int("solved", sm.Solved),
		zap.Int("empty", sm.Empty),
		zap.Int("assigned", sm.Assigned),
		zap.Int("routes", sm.Routes),
		zap.Duration("duration", sm.Duration),
	)
	if !sm.OK() {
		return &incompleteError{sm}
	}
	return nil
}

var openPostgres = store.NewPostgres

// positions builds the coordinate provider and a func releasing what it
// opened. --pincodes loads an in-memory table; otherwise lookup reads
// Postgres.
func positions(ctx context.Context, cfg config.Config, pincodes string) (geo.Provider, func(), error) {
	synthetic := geo.Synthetic{BaseLat: cfg.BaseLat, BaseLon: cfg.BaseLon}
	noop := func() {}
	if cfg.Coordinates != "lookup" {
		return synthetic, noop, nil
	}
	var table geo.PincodeTable
	switch {
	case pincodes != "":
		f, err := os.Open(pincodes)
		if err != nil {
			return nil, nil, fmt.Errorf("open pincodes: %w", err)
		}
		defer f.Close()
		entries, err := csvfile.ReadPincodes(f)
		if err != nil {
			return nil, nil, err
		}
		mem := store.NewMemory()
		if err := mem.PutPincodes(ctx, entries); err != nil {
			return nil, nil, err
		}
		table = mem
	case cfg.DatabaseURL != "":
		pg, err := openPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return &geo.Lookup{Table: pg, Fallback: synthetic}, func() { _ = pg.Close() }, nil
	default:
		return nil, nil, errors.New("coordinates=lookup needs --pincodes or DATABASE_URL")
	}
	return &geo.Lookup{Table: table, Fallback: synthetic}, noop, nil
}

func writeOutput(path string, stdout io.Writer, rows []model.Row) error {
	if path == "-" {
		return csvfile.WriteRows(stdout, rows)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := csvfile.WriteRows(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
