package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration, read from the environment.
type Config struct {
	Server    Server
	Database  Database
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string        `env:"PREREG_ADDR" envDefault:":8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	MetricsEnabled bool          `env:"METRICS_ENABLED" envDefault:"true"`
}

// Database configures the PostgreSQL application store. An empty URL selects
// the in-memory store.
type Database struct {
	URL          string        `env:"DATABASE_URL"`
	MaxOpenConns int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLife  time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig configures the document purge queue. An empty URL selects the
// log-only purger.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PurgeQueue   string        `env:"REDIS_PURGE_QUEUE" envDefault:"prereg:documents:purge"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the audit event bus. No brokers selects log-only
// auditing.
type KafkaConfig struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"prereg.application.audit"`
	Partitions int32    `env:"KAFKA_AUDIT_PARTITIONS" envDefault:"3"`
	Replicas   int16    `env:"KAFKA_AUDIT_REPLICAS" envDefault:"1"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"prereg-identity"`
}

// LifecycleConfig tunes the application lifecycle service.
type LifecycleConfig struct {
	StoreTimeout           time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	RequiredIdentityFields []string      `env:"REQUIRED_IDENTITY_FIELDS" envSeparator:"," envDefault:"fullName,dateOfBirth,gender,residenceStatus"`
	MaxBatchSize           int           `env:"MAX_BATCH_SIZE" envDefault:"10"`
}

// FromEnv parses and validates the configuration.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	if c.Lifecycle.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.Lifecycle.StoreTimeout)
	}
	if c.Server.RequestTimeout < c.Lifecycle.StoreTimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must not be shorter than STORE_TIMEOUT (%s)",
			c.Server.RequestTimeout, c.Lifecycle.StoreTimeout)
	}
	if c.Lifecycle.MaxBatchSize < 1 {
		return fmt.Errorf("MAX_BATCH_SIZE must be at least 1, got %d", c.Lifecycle.MaxBatchSize)
	}
	for _, f := range c.Lifecycle.RequiredIdentityFields {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("REQUIRED_IDENTITY_FIELDS contains an empty field name")
		}
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		return fmt.Errorf("KAFKA_AUDIT_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}
