package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"prereg/internal/application/documents"
	appservice "prereg/internal/application/service"
	"prereg/internal/application/store"
	"prereg/internal/application/store/migrations"
	"prereg/internal/audit"
	"prereg/internal/platform/config"
	"prereg/internal/platform/kafka"
	"prereg/internal/platform/postgres"
	platformredis "prereg/internal/platform/redis"
)

const auditBufferSize = 1024

// storage picks PostgreSQL when DATABASE_URL is set and the in-memory store
// otherwise.
type storage struct {
	store appservice.Store
	tx    appservice.StoreTx
	db    *sql.DB
}

func buildStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.Database.URL == "" {
		logger.WarnContext(ctx, "DATABASE_URL not set; using in-memory application store")
		mem := store.NewInMemory()
		return &storage{store: mem, tx: appservice.NewShardedTx(mem)}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(db, migrations.FS, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	pg := store.NewPostgres(db)
	return &storage{
		store: pg,
		tx:    newApplicationPostgresTx(db, pg),
		db:    db,
	}, nil
}

func (s *storage) Health(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// buildPurger returns the Redis purge queue, or a log-only purger when
// REDIS_URL is unset.
func buildPurger(ctx context.Context, cfg config.Config, logger *slog.Logger) (appservice.Purger, *platformredis.Client, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		logger.WarnContext(ctx, "REDIS_URL not set; document purges are only logged")
		return documents.NewLogPurger(logger), nil, nil
	}
	return documents.NewRedisQueue(client, cfg.Redis.PurgeQueue), client, nil
}

// buildAudit returns the publisher handed to the service. With brokers
// configured it is an async front for Kafka and the returned worker must be
// run; otherwise events only go to the log.
func buildAudit(ctx context.Context, cfg config.Config, logger *slog.Logger) (appservice.AuditPublisher, *audit.Worker, *kgo.Client, error) {
	client, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		return nil, nil, nil, err
	}
	if client == nil {
		logger.WarnContext(ctx, "KAFKA_BROKERS not set; audit events are only logged")
		return audit.NewLogPublisher(logger), nil, nil, nil
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka, logger); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	publisher, worker := audit.NewAsync(audit.NewKafkaPublisher(client, cfg.Kafka.AuditTopic), auditBufferSize, logger)
	return publisher, worker, client, nil
}
