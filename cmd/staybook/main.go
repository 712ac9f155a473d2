package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	availabilityapp "staybook/internal/app/handlers/availability"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/handlers/payments"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/schedule"
	servicebooking "staybook/internal/app/services/booking"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/property"
	"staybook/internal/infra/broker/kafka"
	rediscache "staybook/internal/infra/cache/redis"
	"staybook/internal/infra/catalog"
	"staybook/internal/infra/config"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/validation"
)

const serviceName = "staybook"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	shutdownTracing, err := obs.SetupTracing(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Tracer: otel.Tracer(serviceName + "/http")}, obs.HealthHandlers{
		Ready: app.storage.Ready,
	}, app.handlers)

	var wg sync.WaitGroup
	for _, run := range app.background {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background worker stopped", "error", err)
			}
		}(run)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting",
		"addr", cfg.HTTPAddr,
		"storage", cfg.StorageDriver,
		"lock", cfg.LockDriver,
		"kafka", len(cfg.KafkaBrokers) > 0,
		"redis", cfg.RedisAddr != "")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	wg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.close(closeCtx)
	if err := shutdownTracing(closeCtx); err != nil {
		logger.Warn("tracing shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers   ginserver.Handlers
	storage    *storage
	background []func(ctx context.Context) error
	closers    []func(ctx context.Context) error
}

func (a *application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			slog.Default().Warn("shutdown step failed", "error", err)
		}
	}
	a.storage.Close(ctx)
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &application{storage: store}

	validator, err := validation.New()
	if err != nil {
		store.Close(ctx)
		return nil, err
	}
	propertyCatalog, err := buildCatalog(cfg, logger)
	if err != nil {
		store.Close(ctx)
		return nil, err
	}

	var calendar domainavailability.Store = domainbooking.OccupancyStore(store.Bookings)
	var invalidator policies.AvailabilityInvalidator
	if cfg.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, availability cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache := rediscache.NewAvailabilityCache(client, calendar, cfg.AvailabilityCacheTTL, otel.Tracer(serviceName+"/cache"), logger)
			calendar, invalidator = cache, cache
			app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		}
	}

	producer, closeProducer, err := buildProducer(cfg, logger)
	if err != nil {
		store.Close(ctx)
		return nil, err
	}
	if closeProducer != nil {
		app.closers = append(app.closers, closeProducer)
	}
	relay := &infraoutbox.Worker{
		Store:       store.Outbox,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}

	commandBus := servicebooking.NewCommandBus(servicebooking.Pipeline{
		UoWFactory:     store.UoW,
		Locker:         store.Locker,
		LockTimeout:    cfg.LockTimeout,
		Validator:      validator,
		Idempotency:    store.Idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Outbox:         relay,
		Invalidator:    invalidator,
		Tracer:         otel.Tracer(serviceName + "/booking"),
		Logger:         logger,
	}, bookingapp.Env{
		Catalog: propertyCatalog,
		Pricing: pricing.StandardCalculator{},
		Encoder: outbox.JSONEventEncoder{},
		Logger:  logger,
	})

	queryBus := queries.NewInMemoryBus()
	bookingapp.RegisterQueries(queryBus, &bookingapp.QueryHandlers{UoWFactory: store.UoW, Logger: logger})
	availabilityapp.RegisterQueries(queryBus, &availabilityapp.Handlers{
		Catalog: propertyCatalog,
		Store:   calendar,
		Pricing: pricing.StandardCalculator{},
	})
	validatedQueries := middleware.ChainQueries(queryBus, middleware.QueryValidation(validator))

	coordinator := &servicebooking.Coordinator{Commands: commandBus, Queries: validatedQueries, Logger: logger}
	processor := &payments.Processor{Coordinator: coordinator, Inbox: store.Inbox, Logger: logger}

	app.handlers = ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Bookings: coordinator, Queries: validatedQueries},
		Availability: ginserver.AvailabilityHandler{Queries: validatedQueries},
		Payments:     ginserver.PaymentsHandler{Processor: processor},
	}

	app.background = append(app.background, relay.Run)
	reaper := &schedule.Reaper{UoWFactory: store.UoW, Coordinator: coordinator, Timeout: cfg.PaymentTimeout, Logger: logger}
	sweeper := &schedule.Sweeper{UoWFactory: store.UoW, Coordinator: coordinator, Logger: logger}
	jobs := []schedule.Job{reaper, sweeper}
	if store.Purge != nil {
		jobs = append(jobs, purgeJob{purge: store.Purge})
	}
	for _, job := range jobs {
		app.background = append(app.background, func(ctx context.Context) error {
			return schedule.Run(ctx, job, cfg.SweepInterval, logger)
		})
	}

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, kafka.NewConfig(serviceName+"-payments"),
			&kafka.PaymentHandler{Processor: processor, Logger: logger}, cfg.RetryBackoff, logger)
		if err != nil {
			app.close(ctx)
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		app.background = append(app.background, func(ctx context.Context) error {
			return consumer.Run(ctx, []string{cfg.PaymentEventsTopic})
		})
	}
	return app, nil
}

func buildCatalog(cfg config.Config, logger *slog.Logger) (property.Catalog, error) {
	if cfg.CatalogURL != "" {
		return catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, otel.Tracer(serviceName+"/catalog"), logger)
	}
	fixtures := memory.NewCatalog()
	loaded, err := fixtures.LoadFixtures(cfg.PropertyFixtures)
	if err != nil {
		logger.Warn("property fixtures load failed", "path", cfg.PropertyFixtures, "error", err)
	} else {
		logger.Info("property fixtures loaded", "path", cfg.PropertyFixtures, "count", loaded)
	}
	return fixtures, nil
}

func buildProducer(cfg config.Config, logger *slog.Logger) (infraoutbox.Producer, func(context.Context) error, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, events are logged instead of published")
		return infraoutbox.LogProducer{Logger: logger}, nil, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return producer, func(context.Context) error { return producer.Close() }, nil
}

// purgeJob drops expired idempotency records on backends without a native TTL.
type purgeJob struct {
	purge func(ctx context.Context) (int64, error)
}

func (j purgeJob) Name() string { return "idempotency-purge" }

func (j purgeJob) RunOnce(ctx context.Context) (int, error) {
	n, err := j.purge(ctx)
	return int(n), err
}
