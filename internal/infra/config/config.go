// Package config reads rentbook settings from the environment, optionally
// seeded from a dotenv file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"

	BrokerNone  = "none"
	BrokerKafka = "kafka"
	BrokerNATS  = "nats"
)

type Config struct {
	Env           string
	LogLevel      string
	HTTPAddr      string
	CORSOrigins   []string
	StorageDriver string
	MongoURI      string
	MongoDB       string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventsBroker       string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	PaymentsTopic      string
	NATSURL            string
	OutboxPollInterval time.Duration
	// RetryBackoff spaces outbox publish retries.
	RetryBackoff []time.Duration

	IdempotencyTTL time.Duration
	// TxRetryBackoff spaces re-runs of commands that hit a transient storage error.
	TxRetryBackoff []time.Duration
	SweepSchedule  string
	SweepEnabled   bool
	ItemsFixtures  string
}

// LoadDotEnv loads the given dotenv files that exist. Variables already in the
// environment keep their values.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Load reads every setting and reports all malformed values at once.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Env:                e.str("APP_ENV", "dev"),
		LogLevel:           e.str("LOG_LEVEL", "info"),
		HTTPAddr:           e.str("HTTP_ADDR", ":8080"),
		CORSOrigins:        e.list("CORS_ORIGINS"),
		StorageDriver:      strings.ToLower(e.str("STORAGE_DRIVER", StorageMemory)),
		MongoURI:           e.str("MONGO_URI", ""),
		MongoDB:            e.str("MONGO_DB", "rentbook"),
		PostgresDSN:        e.str("POSTGRES_DSN", ""),
		RedisAddr:          e.str("REDIS_ADDR", ""),
		RedisPassword:      e.str("REDIS_PASSWORD", ""),
		RedisDB:            e.integer("REDIS_DB", 0),
		EventsBroker:       strings.ToLower(e.str("EVENTS_BROKER", BrokerNone)),
		KafkaBrokers:       e.list("KAFKA_BROKERS"),
		KafkaTopicPrefix:   e.str("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:       e.str("KAFKA_GROUP_ID", "rentbook"),
		PaymentsTopic:      e.str("PAYMENTS_TOPIC", "payment.events.v1"),
		NATSURL:            e.str("NATS_URL", "nats://localhost:4222"),
		OutboxPollInterval: e.duration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		RetryBackoff:       e.durations("RETRY_BACKOFF", "1s,5s,30s"),
		IdempotencyTTL:     e.duration("IDEMP_TTL", 7*24*time.Hour),
		TxRetryBackoff:     e.durations("TX_RETRY_BACKOFF", "10ms,40ms,120ms"),
		SweepSchedule:      e.str("SWEEP_SCHEDULE", "@every 15m"),
		SweepEnabled:       e.flag("SWEEP_ENABLED", true),
		ItemsFixtures:      e.str("ITEMS_FIXTURES", ""),
	}
	if err := errors.Join(append(e.errs, cfg.validate()...)...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	switch c.StorageDriver {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for STORAGE_DRIVER=mongo"))
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for STORAGE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	switch c.EventsBroker {
	case BrokerNone, BrokerNATS:
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for EVENTS_BROKER=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BROKER %q", c.EventsBroker))
	}
	return errs
}

// env reads variables and collects parse errors instead of stopping at the
// first one. Empty values count as unset.
type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) fail(key, raw string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (e *env) integer(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, raw, err)
		return def
	}
	return v
}

func (e *env) flag(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "t", "true", "yes", "y", "on":
		return true
	case "0", "f", "false", "no", "n", "off":
		return false
	}
	e.fail(key, raw, errors.New("not a boolean"))
	return def
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(key, raw, err)
		return def
	}
	return d
}

func (e *env) list(key string) []string {
	var out []string
	for _, part := range strings.Split(e.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *env) durations(key, def string) []time.Duration {
	raw := e.str(key, def)
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			e.fail(key, raw, err)
			return nil
		}
		out = append(out, d)
	}
	return out
}
