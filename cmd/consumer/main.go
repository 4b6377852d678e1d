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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/travel-matching/internal/config"
	"github.com/example/travel-matching/internal/dispatch"
	"github.com/example/travel-matching/internal/ingest"
	"github.com/example/travel-matching/internal/logging"
	"github.com/example/travel-matching/internal/matcher"
	"github.com/example/travel-matching/internal/pipeline"
	"github.com/example/travel-matching/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total posted events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total undecodable events received",
	})
	eventsHandled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_handled_total",
		Help: "Total events matched and dispatched",
	})
	eventsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_failed_total",
		Help: "Total events that failed after all retries",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, eventsHandled, eventsFailed)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal("postgres_unavailable", zap.Error(err))
	}
	defer store.Close()

	dispatcher := &dispatch.Dispatcher{
		Store:       store,
		PushTimeout: cfg.PushTimeout,
		Logger:      logger.Named("dispatch"),
	}
	var pushers dispatch.MultiPusher
	if cfg.PushEndpoint != "" {
		pushers = append(pushers, dispatch.NewWebhookPusher(cfg.PushEndpoint, nil))
	}
	if cfg.FCMEndpoint != "" {
		pushers = append(pushers, dispatch.NewFCMPusher(cfg.FCMEndpoint, cfg.FCMKey))
	}
	if len(pushers) > 0 {
		dispatcher.Pusher = pushers
	}

	var claimer *dispatch.RedisClaimer
	if cfg.RedisAddr != "" {
		claimer = dispatch.NewRedisClaimer(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDedupTTL)
		defer claimer.Close()
		dispatcher.Claimer = claimer
	}

	handler := &pipeline.Pipeline{
		Matcher:    &matcher.Service{Store: store, Logger: logger.Named("matcher")},
		Dispatcher: dispatcher,
		Logger:     logger.Named("pipeline"),
	}

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := store.Ping(r.Context()); err != nil {
				http.Error(w, "postgres not ready", http.StatusServiceUnavailable)
				return
			}
			if claimer != nil {
				if err := claimer.Ping(r.Context()); err != nil {
					http.Error(w, "redis not ready", http.StatusServiceUnavailable)
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		logger.Info("metrics_listening", zap.String("addr", cfg.MetricsAddr))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics_server_stopped", zap.Error(err))
		}
	}()

	topics := []string{cfg.Kafka.ListingTopic, cfg.Kafka.RequestTopic}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.Group,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer r.Close()

	logger.Info("consumer_listening",
		zap.Strings("topics", topics),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("group", cfg.Kafka.Group),
	)
	consume(ctx, r, handler, cfg.RetryAttempts, cfg.RetryDelay, logger)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// EventHandler runs matching and dispatch for one event.
type EventHandler interface {
	Handle(ctx context.Context, ev ingest.Event) error
}

// consume reads until ctx is cancelled. A message is committed once it was
// handled, found invalid, or failed every retry; dispatch deduplication
// makes a redelivery harmless.
func consume(ctx context.Context, r messageReader, h EventHandler, attempts int, delay time.Duration, logger *zap.Logger) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("consumer_shutdown")
				return
			}
			logger.Warn("kafka_read_failed", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		ev, err := ingest.DecodeEvent(m.Value)
		if err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid_event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		} else if err := handleWithRetry(ctx, h, ev, attempts, delay); err != nil {
			if ctx.Err() != nil {
				return
			}
			eventsFailed.Inc()
			logger.Error("event_failed", zap.String("type", string(ev.Type)), zap.Error(err))
		} else {
			eventsHandled.Inc()
		}

		if err := r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			logger.Warn("kafka_commit_failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handleWithRetry runs the handler up to attempts times, doubling delay
// between tries.
func handleWithRetry(ctx context.Context, h EventHandler, ev ingest.Event, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = h.Handle(ctx, ev); err == nil {
			return nil
		}
		if errors.Is(err, ingest.ErrUnknownEvent) || i == attempts-1 {
			return err
		}
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
