package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"staybook/internal/app/middleware"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/infra/config"
	"staybook/internal/infra/db/mongo"
	"staybook/internal/infra/db/postgres"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
)

// storage bundles one backend's adapters. Bookings reads outside any unit of
// work and serves the lock-free queries.
type storage struct {
	UoW         uow.UoWFactory
	Bookings    domainbooking.Repository
	Outbox      infraoutbox.Store
	Idempotency middleware.IdempotencyStore
	Inbox       policies.Inbox
	Locker      policies.Locker
	Ready       func(ctx context.Context) error
	Purge       func(ctx context.Context) (int64, error)

	mongoDB *mongodriver.Database
	pgPool  *pgxpool.Pool
	closers []func(ctx context.Context) error
}

func (s *storage) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			slog.Default().Warn("storage close failed", "err", err)
		}
	}
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	s := &storage{}
	switch cfg.StorageDriver {
	case config.DriverMemory:
		store := memory.NewStore(memory.NewOutbox())
		s.UoW = memory.Factory{Store: store}
		s.Bookings = memory.NewBookingRepository(store)
		s.Outbox = store.Outbox()
		s.Idempotency = memory.NewIdempotencyStore()
		s.Inbox = memory.NewInbox()
		s.Ready = store.Ping
	case config.DriverMongo:
		db, err := s.mongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		bookings := mongo.NewBookingRepository(db)
		outbox := mongo.NewOutboxStore(db)
		s.UoW = mongo.Factory{DB: db, BookingRepo: bookings, Outbox: outbox}
		s.Bookings = bookings
		s.Outbox = outbox
		s.Idempotency = mongo.NewIdempotencyStore(db, cfg.IdempotencyTTL)
		s.Inbox = mongo.NewInboxStore(db, cfg.KafkaConsumerGroup)
		s.Ready = func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }
	case config.DriverPostgres:
		pool, err := s.postgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		idem := postgres.NewIdempotencyStore(pool, cfg.IdempotencyTTL)
		s.UoW = postgres.Factory{Pool: pool}
		s.Bookings = postgres.NewBookingRepository(pool)
		s.Outbox = postgres.NewOutboxStore(pool)
		s.Idempotency = idem
		s.Inbox = postgres.NewInboxStore(pool, cfg.KafkaConsumerGroup)
		s.Ready = pool.Ping
		s.Purge = idem.Purge
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	switch cfg.LockDriver {
	case config.DriverMemory:
		s.Locker = memory.NewLocker()
	case config.DriverMongo:
		db, err := s.mongo(ctx, cfg)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.Locker = mongo.NewLeaseLocker(db, cfg.LockLeaseTTL)
	case config.DriverPostgres:
		if _, err := s.postgres(ctx, cfg, logger); err != nil {
			s.Close(ctx)
			return nil, err
		}
		lockPool, err := postgres.OpenLockPool(ctx, cfg.DatabaseURL, cfg.LockPoolSize)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error {
			lockPool.Close()
			return nil
		})
		s.Locker = postgres.NewAdvisoryLocker(lockPool)
	default:
		s.Close(ctx)
		return nil, fmt.Errorf("unsupported lock driver %q", cfg.LockDriver)
	}
	return s, nil
}

func (s *storage) mongo(ctx context.Context, cfg config.Config) (*mongodriver.Database, error) {
	if s.mongoDB != nil {
		return s.mongoDB, nil
	}
	client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s.mongoDB = client.DB
	s.closers = append(s.closers, client.Close)
	return s.mongoDB, nil
}

func (s *storage) postgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if s.pgPool != nil {
		return s.pgPool, nil
	}
	pool, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	applied, err := postgres.Migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("postgres migrations applied", "count", applied)
	s.pgPool = pool
	s.closers = append(s.closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	return pool, nil
}
