// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Storage and queue drivers.
const (
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.
type Config struct {
	Env  string // APP_ENV (dev, test, prod)
	Port string // APP_PORT

	StoreDriver string // STORE_DRIVER: mysql (default) or memory
	QueueDriver string // QUEUE_DRIVER: redis (default) or memory
	DB          DBConfig

	PaymentSecret string // JWT_SECRET: HS256 key of payment callbacks
	RabbitURL     string // RABBITMQ_URL; empty disables event publishing
	AuditLogPath  string // AUDIT_LOG_PATH

	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT: json or console

	Reservation ReservationConfig
	Jobs        JobsConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
}

// DBConfig describes the MySQL connection.
type DBConfig struct {
	User         string
	Pass         string
	Host         string
	Port         string
	Name         string
	MaxOpenConns int
	Migrate      bool // DB_MIGRATE: create missing tables at startup
}

// ReservationConfig tunes the booking engine.
type ReservationConfig struct {
	LeaseWindow time.Duration   // LEASE_WINDOW
	MaxAttempts int             // RESERVE_MAX_ATTEMPTS
	TaxRate     decimal.Decimal // TAX_RATE, e.g. 0.18
}

// JobsConfig tunes the background worker pool and the reclaim sweep.
type JobsConfig struct {
	Workers           int           // WORKER_COUNT
	MaxAttempts       int           // JOB_MAX_ATTEMPTS
	PollInterval      time.Duration // JOB_POLL_INTERVAL
	VisibilityTimeout time.Duration // JOB_VISIBILITY_TIMEOUT
	QueuePrefix       string        // JOB_QUEUE_PREFIX
	SweepInterval     time.Duration // SWEEP_INTERVAL; 0 disables the sweep
	SweepBatch        int           // SWEEP_BATCH
}

// Load reads configuration from the environment.  A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.  Missing required variables and malformed
// values are reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	l := &loader{}
	cfg := Config{
		Env:           envStr("APP_ENV", "dev"),
		Port:          envStr("APP_PORT", "8080"),
		StoreDriver:   strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		QueueDriver:   strings.ToLower(envStr("QUEUE_DRIVER", DriverRedis)),
		PaymentSecret: l.must("JWT_SECRET"),
		RabbitURL:     os.Getenv("RABBITMQ_URL"),
		AuditLogPath:  envStr("AUDIT_LOG_PATH", "logs/booking.log"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		LogFormat:     envStr("LOG_FORMAT", "json"),
		Reservation: ReservationConfig{
			LeaseWindow: l.duration("LEASE_WINDOW", 100*time.Second),
			MaxAttempts: l.int("RESERVE_MAX_ATTEMPTS", 3),
			TaxRate:     l.decimal("TAX_RATE", decimal.Zero),
		},
		Jobs: JobsConfig{
			Workers:           l.int("WORKER_COUNT", 4),
			MaxAttempts:       l.int("JOB_MAX_ATTEMPTS", 5),
			PollInterval:      l.duration("JOB_POLL_INTERVAL", 500*time.Millisecond),
			VisibilityTimeout: l.duration("JOB_VISIBILITY_TIMEOUT", 30*time.Second),
			QueuePrefix:       envStr("JOB_QUEUE_PREFIX", "jobs"),
			SweepInterval:     l.duration("SWEEP_INTERVAL", 30*time.Second),
			SweepBatch:        l.int("SWEEP_BATCH", 100),
		},
		RateLimit: LoadRateLimitConfig(),
		Cache:     LoadCacheConfig(),
	}

	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DB = DBConfig{
			User:         l.must("DB_USER"),
			Pass:         os.Getenv("DB_PASS"),
			Host:         l.must("DB_HOST"),
			Port:         envStr("DB_PORT", "3306"),
			Name:         l.must("DB_NAME"),
			MaxOpenConns: l.int("DB_MAX_OPEN_CONNS", 25),
			Migrate:      envBool("DB_MIGRATE", true),
		}
	case DriverMemory:
	default:
		l.fail(fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}
	if cfg.QueueDriver != DriverRedis && cfg.QueueDriver != DriverMemory {
		l.fail(fmt.Errorf("QUEUE_DRIVER: unknown driver %q", cfg.QueueDriver))
	}
	if cfg.Reservation.LeaseWindow <= 0 {
		l.fail(errors.New("LEASE_WINDOW must be positive"))
	}
	if cfg.Reservation.TaxRate.IsNegative() {
		l.fail(errors.New("TAX_RATE must not be negative"))
	}
	return cfg, l.err()
}

// loader accumulates configuration errors so that all of them can be
// reported at once.
type loader struct {
	errs []error
}

func (l *loader) fail(err error) { l.errs = append(l.errs, err) }

func (l *loader) err() error { return errors.Join(l.errs...) }

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.fail(fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (l *loader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(fmt.Errorf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func (l *loader) decimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		l.fail(fmt.Errorf("invalid decimal for %s: %q", key, v))
		return def
	}
	return d
}
