package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ServerConfig captures all tunable parameters for the API process.
// Defaults let the binary run locally with an in-memory store and no
// brokers.
type ServerConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`

	PGDSN         string `envconfig:"PG_DSN"`
	RunMigrations bool   `envconfig:"MIGRATE"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDedupTTL time.Duration `envconfig:"REDIS_DEDUP_TTL" default:"720h"`

	Kafka KafkaConfig

	PushEndpoint string        `envconfig:"PUSH_ENDPOINT"`
	FCMEndpoint  string        `envconfig:"FCM_ENDPOINT"`
	FCMKey       string        `envconfig:"FCM_KEY"`
	PushTimeout  time.Duration `envconfig:"PUSH_TIMEOUT" default:"3s"`

	SweepInterval       time.Duration `envconfig:"SWEEP_INTERVAL" default:"2m"`
	SweepBatchSize      int           `envconfig:"SWEEP_BATCH_SIZE" default:"500"`
	PendingTTL          time.Duration `envconfig:"PENDING_TTL" default:"24h"`
	ReversalWindow      time.Duration `envconfig:"REVERSAL_WINDOW" default:"5m"`
	CloseAfterDeparture time.Duration `envconfig:"CLOSE_AFTER_DEPARTURE" default:"24h"`
	RequestTTL          time.Duration `envconfig:"REQUEST_TTL" default:"720h"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// KafkaConfig is shared by the API (producer) and the consumer.
type KafkaConfig struct {
	Brokers      []string `envconfig:"KAFKA_BROKERS"`
	ListingTopic string   `envconfig:"KAFKA_LISTING_TOPIC" default:"listing-posted"`
	RequestTopic string   `envconfig:"KAFKA_REQUEST_TOPIC" default:"request-posted"`
	Group        string   `envconfig:"KAFKA_GROUP" default:"travel-matching-consumer"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// ConsumerConfig is the configuration of cmd/consumer.
type ConsumerConfig struct {
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":2112"`
	PGDSN       string `envconfig:"PG_DSN" required:"true"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDedupTTL time.Duration `envconfig:"REDIS_DEDUP_TTL" default:"720h"`

	Kafka KafkaConfig

	PushEndpoint string        `envconfig:"PUSH_ENDPOINT"`
	FCMEndpoint  string        `envconfig:"FCM_ENDPOINT"`
	FCMKey       string        `envconfig:"FCM_KEY"`
	PushTimeout  time.Duration `envconfig:"PUSH_TIMEOUT" default:"3s"`

	RetryAttempts int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `envconfig:"RETRY_DELAY" default:"200ms"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// loadDotEnv reads .env (or ENV_FILE) when present. A missing file is fine.
func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Kafka.Brokers = trimAll(cfg.Kafka.Brokers)
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c ServerConfig) Validate() error {
	var errs []error
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"SWEEP_INTERVAL", c.SweepInterval},
		{"PENDING_TTL", c.PendingTTL},
		{"REVERSAL_WINDOW", c.ReversalWindow},
		{"REQUEST_TTL", c.RequestTTL},
		{"PUSH_TIMEOUT", c.PushTimeout},
		{"HTTP_SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", d.key))
		}
	}
	if c.CloseAfterDeparture < 0 {
		errs = append(errs, fmt.Errorf("CLOSE_AFTER_DEPARTURE must be >= 0"))
	}
	if c.SweepBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_BATCH_SIZE must be > 0"))
	}
	if c.RunMigrations && c.PGDSN == "" {
		errs = append(errs, fmt.Errorf("MIGRATE requires PG_DSN"))
	}
	if c.FCMEndpoint != "" && c.FCMKey == "" {
		errs = append(errs, fmt.Errorf("FCM_ENDPOINT requires FCM_KEY"))
	}
	return errors.Join(errs...)
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	var cfg ConsumerConfig
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Kafka.Brokers = trimAll(cfg.Kafka.Brokers)
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	var errs []error
	if cfg.RetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_ATTEMPTS must be > 0"))
	}
	if cfg.PushTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PUSH_TIMEOUT must be > 0"))
	}
	return cfg, errors.Join(errs...)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
