package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/travel-matching/internal/config"
	"github.com/example/travel-matching/internal/confirmation"
	"github.com/example/travel-matching/internal/dispatch"
	"github.com/example/travel-matching/internal/expiry"
	httpapi "github.com/example/travel-matching/internal/http"
	"github.com/example/travel-matching/internal/ingest"
	"github.com/example/travel-matching/internal/logging"
	"github.com/example/travel-matching/internal/marketplace"
	"github.com/example/travel-matching/internal/matcher"
	"github.com/example/travel-matching/internal/pipeline"
	"github.com/example/travel-matching/internal/search"
	"github.com/example/travel-matching/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	wsreg := dispatch.NewWSRegistry()
	dispatcher := &dispatch.Dispatcher{
		Store:       store,
		Pusher:      buildPusher(cfg.PushEndpoint, cfg.FCMEndpoint, cfg.FCMKey, wsreg),
		PushTimeout: cfg.PushTimeout,
		Logger:      logger.Named("dispatch"),
	}
	if cfg.RedisAddr != "" {
		claimer := dispatch.NewRedisClaimer(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDedupTTL)
		defer claimer.Close()
		if err := claimer.Ping(ctx); err != nil {
			logger.Warn("redis_unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		dispatcher.Claimer = claimer
	}

	var announcer marketplace.Announcer
	if cfg.Kafka.Enabled() {
		producer := ingest.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.ListingTopic, cfg.Kafka.RequestTopic)
		defer producer.Close()
		announcer = producer
		logger.Info("matching_via_kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		announcer = &pipeline.Pipeline{
			Matcher:    &matcher.Service{Store: store, Logger: logger.Named("matcher")},
			Dispatcher: dispatcher,
			Logger:     logger.Named("pipeline"),
		}
		logger.Info("matching_inline")
	}

	confirmations := &confirmation.Service{
		Store:          store,
		PendingTTL:     cfg.PendingTTL,
		ReversalWindow: cfg.ReversalWindow,
		Logger:         logger.Named("confirmation"),
	}
	sweeper := &expiry.Sweeper{
		Store:               store,
		Confirmations:       confirmations,
		BatchSize:           cfg.SweepBatchSize,
		CloseAfterDeparture: cfg.CloseAfterDeparture,
		Logger:              logger.Named("expiry"),
	}

	api := httpapi.NewServer(httpapi.Deps{
		Marketplace: &marketplace.Service{
			Store:      store,
			Announcer:  announcer,
			RequestTTL: cfg.RequestTTL,
			Logger:     logger.Named("marketplace"),
		},
		Search:        &search.Service{Store: store, Engine: &search.Engine{}, Logger: logger.Named("search")},
		Confirmations: confirmations,
		Sweeper:       sweeper,
		WS:            wsreg,
		Logger:        logger.Named("http"),
	})
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("http_shutdown")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return (&expiry.Scheduler{Sweeper: sweeper, Interval: cfg.SweepInterval, Logger: logger.Named("scheduler")}).Run(gctx)
	})
	return g.Wait()
}

// openStore returns Postgres when PG_DSN is set and the in-memory store
// otherwise.
func openStore(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) (storage.Store, func(), error) {
	if cfg.PGDSN == "" {
		logger.Warn("store_in_memory", zap.String("reason", "PG_DSN not set"))
		return storage.NewMemoryStore(), func() {}, nil
	}
	pg, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if cfg.RunMigrations {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations_applied")
	}
	return pg, func() { _ = pg.Close() }, nil
}

// buildPusher always includes the websocket registry; webhook and FCM are
// added when configured.
func buildPusher(endpoint, fcmEndpoint, fcmKey string, ws *dispatch.WSRegistry) dispatch.Pusher {
	pushers := dispatch.MultiPusher{dispatch.NewWebhookPusher(endpoint, ws)}
	if fcmEndpoint != "" {
		pushers = append(pushers, dispatch.NewFCMPusher(fcmEndpoint, fcmKey))
	}
	if len(pushers) == 1 {
		return pushers[0]
	}
	return pushers
}
