package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                  string
	HTTPAddr             string
	StorageMode          string
	DatabaseURL          string
	DBMaxConns           int32
	LockTimeout          time.Duration
	HoldTTL              time.Duration
	HoldSweepInterval    time.Duration
	MongoURI             string
	MongoDB              string
	IdempotencyTTL       time.Duration
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	ChannelBookingsTopic string
	ChannelConsumerGroup string
	OutboxPollInterval   time.Duration
	RetryBackoff         []time.Duration
	DefaultCurrency      string
	CORSOrigins          []string
	FixturesPath         string
	MigrateOnStart       bool
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                  getEnv("APP_ENV", "dev"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		StorageMode:          strings.ToLower(getEnv("STORAGE_MODE", StorageMemory)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDB:              getEnv("MONGO_DB", "roomledger"),
		KafkaTopicPrefix:     getEnv("KAFKA_TOPIC_PREFIX", ""),
		ChannelBookingsTopic: getEnv("CHANNEL_BOOKINGS_TOPIC", "channel.bookings.v1"),
		ChannelConsumerGroup: getEnv("CHANNEL_CONSUMER_GROUP", "roomledger-channel-sync"),
		DefaultCurrency:      strings.ToUpper(getEnv("DEFAULT_CURRENCY", "EUR")),
		FixturesPath:         os.Getenv("FIXTURES_PATH"),
	}
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "http://localhost:3000"))

	var err error
	if cfg.LockTimeout, err = parseDurationEnv("LOCK_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HoldTTL, err = parseDurationEnv("HOLD_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.HoldSweepInterval, err = parseDurationEnv("HOLD_SWEEP_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.MigrateOnStart, err = parseBoolEnv("MIGRATE_ON_START", true); err != nil {
		return Config{}, err
	}
	maxConns, err := parseIntEnv("DB_MAX_CONNS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.DBMaxConns = int32(maxConns)

	retryStr := getEnv("RETRY_BACKOFF", "100ms,500ms,2s")
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

	switch cfg.StorageMode {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORAGE_MODE=postgres")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_MODE %q", cfg.StorageMode)
	}
	if cfg.LockTimeout <= 0 {
		return Config{}, fmt.Errorf("LOCK_TIMEOUT must be positive")
	}
	if cfg.HoldTTL <= 0 {
		return Config{}, fmt.Errorf("HOLD_TTL must be positive")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required when KAFKA_BROKERS is set")
	}
	return cfg, nil
}

// UsesKafka reports whether the outbox relay and channel consumer talk to a broker.
func (c Config) UsesKafka() bool {
	return len(c.KafkaBrokers) > 0
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

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
