package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                  string
	HTTPAddr             string
	LogLevel             string
	StorageDriver        string
	LockDriver           string
	LockTimeout          time.Duration
	LockLeaseTTL         time.Duration
	LockPoolSize         int32
	MongoURI             string
	MongoDB              string
	DatabaseURL          string
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	KafkaConsumerGroup   string
	PaymentEventsTopic   string
	IdempotencyTTL       time.Duration
	OutboxPollInterval   time.Duration
	RetryBackoff         []time.Duration
	RedisAddr            string
	AvailabilityCacheTTL time.Duration
	CatalogURL           string
	CatalogTimeout       time.Duration
	PropertyFixtures     string
	PaymentTimeout       time.Duration
	SweepInterval        time.Duration
	JaegerEndpoint       string
	CORSOrigins          []string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "staybook"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "staybook-payments"),
		PaymentEventsTopic: getEnv("PAYMENT_EVENTS_TOPIC", "payment.events.v1"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		CatalogURL:         os.Getenv("CATALOG_URL"),
		PropertyFixtures:   getEnv("PROPERTY_FIXTURES", "data/properties.json"),
		JaegerEndpoint:     os.Getenv("JAEGER_ENDPOINT"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
	}
	cfg.LockDriver = strings.ToLower(getEnv("LOCK_DRIVER", cfg.StorageDriver))
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"LOCK_TIMEOUT", 5 * time.Second, &cfg.LockTimeout},
		{"LOCK_LEASE_TTL", 30 * time.Second, &cfg.LockLeaseTTL},
		{"IDEMP_TTL", 168 * time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", 500 * time.Millisecond, &cfg.OutboxPollInterval},
		{"AVAILABILITY_CACHE_TTL", 30 * time.Second, &cfg.AvailabilityCacheTTL},
		{"CATALOG_TIMEOUT", 2 * time.Second, &cfg.CatalogTimeout},
		{"PAYMENT_TIMEOUT", 30 * time.Minute, &cfg.PaymentTimeout},
		{"SWEEP_INTERVAL", time.Minute, &cfg.SweepInterval},
	}
	for _, d := range durations {
		v, err := parseDurationEnv(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	poolSize, err := strconv.ParseInt(getEnv("LOCK_POOL_SIZE", "8"), 10, 32)
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOCK_POOL_SIZE: %w", err)
	}
	cfg.LockPoolSize = int32(poolSize)

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !knownDriver(c.StorageDriver) {
		return fmt.Errorf("STORAGE_DRIVER must be memory, mongo or postgres, got %q", c.StorageDriver)
	}
	if !knownDriver(c.LockDriver) {
		return fmt.Errorf("LOCK_DRIVER must be memory, mongo or postgres, got %q", c.LockDriver)
	}
	if (c.StorageDriver == DriverMongo || c.LockDriver == DriverMongo) && c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required for the mongo driver")
	}
	if (c.StorageDriver == DriverPostgres || c.LockDriver == DriverPostgres) && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	if c.StorageDriver != DriverMemory && c.LockDriver == DriverMemory {
		return fmt.Errorf("LOCK_DRIVER=memory cannot guard shared %s storage", c.StorageDriver)
	}
	if c.LockPoolSize < 1 {
		return fmt.Errorf("LOCK_POOL_SIZE must be at least 1")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

func knownDriver(d string) bool {
	return d == DriverMemory || d == DriverMongo || d == DriverPostgres
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
