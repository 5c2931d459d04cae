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

	"roomledger/internal/app/engine"
	"roomledger/internal/app/middleware"
	"roomledger/internal/app/uow"
	"roomledger/internal/clock"
	"roomledger/internal/infra/broker/kafka"
	"roomledger/internal/infra/channelsync"
	"roomledger/internal/infra/config"
	mongostore "roomledger/internal/infra/db/mongo"
	"roomledger/internal/infra/db/postgres"
	"roomledger/internal/infra/db/postgres/migrations"
	ginserver "roomledger/internal/infra/http/gin"
	"roomledger/internal/infra/inbox"
	"roomledger/internal/infra/obs"
	infraoutbox "roomledger/internal/infra/outbox"
	"roomledger/internal/infra/storage/memory"
	"roomledger/internal/infra/sweeper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	if err := app.loadFixtures(ctx, cfg.FixturesPath, logger); err != nil {
		logger.Warn("fixtures load failed", "error", err, "path", cfg.FixturesPath)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: app.checks}, app.handlers)

	var wg sync.WaitGroup
	for name, run := range app.workers {
		wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer wg.Done()
			logger.Info("worker starting", "worker", name)
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "worker", name, "error", err)
				return
			}
			logger.Info("worker stopped", "worker", name)
		}(name, run)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode, "kafka", cfg.UsesKafka())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

type application struct {
	engine   *engine.Engine
	handlers ginserver.Handlers
	checks   map[string]obs.Check
	workers  map[string]func(context.Context) error
	closers  []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		checks:  map[string]obs.Check{},
		workers: map[string]func(context.Context) error{},
	}

	var (
		factory     uow.UoWFactory
		outboxStore infraoutbox.Store
	)
	switch cfg.StorageMode {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { pool.Close(); return nil })
		if cfg.MigrateOnStart {
			if err := migrations.Apply(ctx, pool); err != nil {
				app.close(logger)
				return nil, err
			}
			logger.Info("migrations applied")
		}
		factory = &postgres.Factory{Pool: pool, LockTimeout: cfg.LockTimeout}
		outboxStore = postgres.NewOutboxStore(pool)
		app.checks["postgres"] = pool.Ping
	default:
		store := memory.NewStore()
		store.LockTimeout = cfg.LockTimeout
		factory = store
		outboxStore = store.Outbox()
		logger.Warn("using in-memory storage; data is lost on restart")
	}

	var (
		idem         middleware.IdempotencyStore
		channelInbox channelsync.Inbox
	)
	if cfg.MongoURI != "" {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		app.checks["mongo"] = client.Ping
		store, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		idem = store
		box, err := inbox.NewStore(ctx, client.DB, cfg.ChannelConsumerGroup)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		channelInbox = box
	} else {
		idem = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		channelInbox = memory.NewInbox()
	}

	var producer infraoutbox.Producer = infraoutbox.LogProducer{Logger: logger}
	if cfg.UsesKafka() {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return p.Close() })
		producer = p
	}
	relay := &infraoutbox.Worker{
		Store:       outboxStore,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}
	app.workers["outbox"] = relay.Run

	app.engine = engine.New(engine.Deps{
		UoW:             factory,
		Idempotency:     idem,
		Flusher:         relay,
		Clock:           clock.NewSystem(),
		HoldTTL:         cfg.HoldTTL,
		LockTimeout:     cfg.LockTimeout,
		RetryBackoff:    cfg.RetryBackoff,
		DefaultCurrency: cfg.DefaultCurrency,
		Logger:          logger,
	})

	sweep := &sweeper.Worker{Commands: app.engine.Commands, Queries: app.engine.Queries, Interval: cfg.HoldSweepInterval, Logger: logger}
	app.workers["hold-sweeper"] = sweep.Run

	if cfg.UsesKafka() {
		handler := &channelsync.Handler{Commands: app.engine.Retrying, Inbox: channelInbox, Logger: logger}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ChannelConsumerGroup, nil, handler, logger)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
		topics := []string{cfg.ChannelBookingsTopic}
		app.workers["channel-sync"] = func(ctx context.Context) error { return consumer.Run(ctx, topics) }
	}

	app.handlers = ginserver.Handlers{
		Availability: ginserver.AvailabilityHandler{Queries: app.engine.Queries, Logger: logger},
		Booking:      ginserver.BookingHandler{Commands: app.engine.Commands, Queries: app.engine.Queries, Logger: logger},
		Inventory:    ginserver.InventoryHandler{Commands: app.engine.Commands, Logger: logger},
		Search:       ginserver.SearchHandler{Queries: app.engine.Queries, Logger: logger},
		Admin:        ginserver.AdminHandler{Commands: app.engine.Commands, Logger: logger},
	}
	return app, nil
}

// close releases resources in reverse order of acquisition.
func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
