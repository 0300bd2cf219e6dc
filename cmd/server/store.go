package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradesync/internal/enrichment"
	"tradesync/internal/platform/config"
	"tradesync/internal/platform/database"
	"tradesync/internal/platform/kafka"
	"tradesync/internal/trade/store"
	"tradesync/internal/trade/upsert"
	audit "tradesync/pkg/platform/audit"
	auditmemory "tradesync/pkg/platform/audit/store/memory"
	auditpostgres "tradesync/pkg/platform/audit/store/postgres"
)

type tradeStore interface {
	upsert.Store
	enrichment.Store
	Ping(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, cfg config.Database) (tradeStore, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := database.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		st := store.NewPostgres(db)
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "sqlite":
		return store.NewSQLite(ctx, cfg.URL)
	case "memory", "":
		return store.NewInMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// openAuditStore prefers Kafka, then the run_events table when the trade
// store is Postgres, then an in-memory log.
func openAuditStore(ctx context.Context, cfg config.Config, st tradeStore, log *slog.Logger) (audit.Store, func(), error) {
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka, kafka.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := producer.EnsureTopic(topicCtx, 1, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		return producer, producer.Close, nil
	}
	if pg, ok := st.(*store.PostgresStore); ok {
		events := auditpostgres.New(pg.DB())
		if err := events.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return events, func() {}, nil
	}
	return auditmemory.NewInMemoryStore(), func() {}, nil
}
