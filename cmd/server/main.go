package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"tradesync/internal/enrichment"
	httpapi "tradesync/internal/http"
	"tradesync/internal/jobs"
	"tradesync/internal/jobs/lock"
	"tradesync/internal/platform/config"
	"tradesync/internal/platform/httpserver"
	"tradesync/internal/platform/logger"
	"tradesync/internal/platform/metrics"
	"tradesync/internal/platform/redis"
	"tradesync/internal/registry"
	"tradesync/internal/trade/credential"
	"tradesync/internal/trade/fetcher"
	"tradesync/internal/trade/ingest"
	"tradesync/internal/trade/upsert"
	"tradesync/pkg/platform/audit/publisher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tradesync: %v\n", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until SIGINT/SIGTERM. Only configuration
// and startup failures are returned.
func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	auditStore, closeAudit, err := openAuditStore(ctx, cfg, st, log)
	if err != nil {
		return err
	}
	defer closeAudit()
	events := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
		publisher.WithDropCounter(m),
	)
	defer events.Close()

	httpClient := &http.Client{}
	tokenClient, err := credential.NewTokenClient(cfg.Auth, httpClient)
	if err != nil {
		return fmt.Errorf("token client: %w", err)
	}
	gate, err := credential.NewGate(tokenClient,
		credential.WithLogger(log),
		credential.WithMetrics(m),
		credential.WithRefreshPeriod(cfg.Auth.RefreshPeriod),
	)
	if err != nil {
		return fmt.Errorf("credential gate: %w", err)
	}

	pages, err := fetcher.New(cfg.Trade, gate,
		fetcher.WithLogger(log),
		fetcher.WithMetrics(m),
		fetcher.WithHTTPClient(httpClient),
	)
	if err != nil {
		return fmt.Errorf("page fetcher: %w", err)
	}
	engine, err := upsert.New(st, upsert.WithLogger(log), upsert.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("upsert engine: %w", err)
	}
	ingestor, err := ingest.New(pages, engine, ingest.Config{
		FetchConcurrency: cfg.Trade.FetchConcurrency,
		PersistWorkers:   cfg.Trade.PersistWorkers,
		BatchSize:        cfg.Trade.BatchSize,
		LookbackDays:     cfg.Schedule.LookbackDays,
	},
		ingest.WithLogger(log),
		ingest.WithMetrics(m),
		ingest.WithAuditEmitter(events),
	)
	if err != nil {
		return fmt.Errorf("ingest service: %w", err)
	}

	registryClient, err := registry.New(cfg.Registry, gate,
		registry.WithLogger(log),
		registry.WithHTTPClient(httpClient),
	)
	if err != nil {
		return fmt.Errorf("registry client: %w", err)
	}
	enricher, err := enrichment.New(st, registryClient,
		enrichment.WithLogger(log),
		enrichment.WithMetrics(m),
		enrichment.WithAuditEmitter(events),
		enrichment.WithSpacing(cfg.Registry.Spacing),
		enrichment.WithRefreshIncomplete(cfg.Registry.RefreshIncomplete),
	)
	if err != nil {
		return fmt.Errorf("enrichment service: %w", err)
	}

	ops := httpapi.NewHandler(reg, log)
	ops.AddCheck("credential", func(context.Context) error {
		if !gate.Ready() {
			return errors.New("no token obtained yet")
		}
		return nil
	})
	ops.AddCheck("database", st.Ping)

	runnerOpts := []jobs.Option{
		jobs.WithLogger(log),
		jobs.WithMetrics(m),
		jobs.WithAuditEmitter(events),
	}
	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		runnerOpts = append(runnerOpts, jobs.WithLocker(lock.NewRedis(rdb.Client)))
		ops.AddCheck("redis", rdb.Health)
		log.Info("using redis run lock")
	}
	runner, err := jobs.New(ingestor, enricher, cfg.Schedule, runnerOpts...)
	if err != nil {
		return fmt.Errorf("job runner: %w", err)
	}

	srv := httpserver.New(cfg.Server.Addr, httpapi.NewRouter(ops))

	log.Info("starting tradesync",
		"mode", cfg.Schedule.Mode,
		"interval", cfg.Schedule.Interval,
		"store", cfg.Database.Driver,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(gate.Run(gctx))
	})
	g.Go(func() error {
		return runner.Start(gctx)
	})
	g.Go(func() error {
		return httpserver.Serve(gctx, srv, log)
	})

	err = g.Wait()
	log.Info("tradesync stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
