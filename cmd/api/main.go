package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"routeplan/internal/api"
	"routeplan/internal/config"
	"routeplan/internal/geo"
	"routeplan/internal/logging"
	"routeplan/internal/metrics"
	"routeplan/internal/notify"
	"routeplan/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	if err := run(cfg, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	metrics.RegisterDefault()
	srv := api.NewServer(cfg, log)

	provider, closeStore, err := coordinates(cfg, srv, log)
	if err != nil {
		return err
	}
	defer closeStore()
	srv.Provider = provider

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()
		broker := api.NewRedisBrokerClient(rdb, log)
		srv.Broker = broker
		srv.AddReadiness(broker)
		srv.Provider = geo.NewRedisCache(rdb, srv.Provider, cfg.CacheTTL, geo.Namespace(cfg.Coordinates, cfg.BaseLat, cfg.BaseLon), log)
	}

	var pub notify.Publisher = notify.Nop{}
	if cfg.AMQPURL != "" {
		a, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPSecret)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		pub = a
	}
	srv.Notify = notify.NewWorker(pub, log)
	srv.Notify.Start()
	defer srv.Notify.Stop()

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		log.Info("API listening", zap.String("addr", cfg.Addr), zap.String("solver", cfg.Solver), zap.String("coordinates", cfg.Coordinates))
		errc <- hs.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return hs.Shutdown(sctx)
}

// coordinates picks the position provider. "lookup" reads a pincode table
// from Postgres when DATABASE_URL is set, otherwise from memory, and falls
// back to synthetic positions for unknown pincodes.
func coordinates(cfg config.Config, srv *api.Server, log *zap.Logger) (geo.Provider, func(), error) {
	synthetic := geo.Synthetic{BaseLat: cfg.BaseLat, BaseLon: cfg.BaseLon}
	if cfg.Coordinates != "lookup" {
		return synthetic, func() {}, nil
	}
	var st store.CoordinateStore
	if cfg.DatabaseURL == "" {
		log.Warn("coordinates=lookup without DATABASE_URL, using an empty in-memory table")
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, nil, err
			}
		}
		st = pg
	}
	srv.AddReadiness(st)
	return &geo.Lookup{Table: st, Fallback: synthetic}, func() { _ = st.Close() }, nil
}
