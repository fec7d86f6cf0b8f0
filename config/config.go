/*
Package config loads runtime configuration from the environment.

PURPOSE:
  Values come from process environment variables, optionally seeded from a
  .env file in the working directory. Every value has a default so a bare
  checkout runs against the in-memory dedup backend and a local SQLite file.

SEE ALSO:
  - observability/logging.go: consumes LoggerConfig
  - store/redis/claims.go: consumes RedisConfig
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/Astoria-Consulting/mad-dogs/payroll"
)

// Dedup backends for processed-order and processed-payment claims.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// Config aggregates runtime configuration.
type Config struct {
	App     AppConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Payroll PayrollConfig
}

// AppConfig controls HTTP server behavior.
type AppConfig struct {
	Host                  string
	Port                  string
	RequestTimeoutSeconds int
}

// SQLiteConfig locates the run archive.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ClaimTTL time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// PayrollConfig holds the knobs of a payroll run.
type PayrollConfig struct {
	Workers      int
	Timezone     string
	DedupBackend string
	Percentages  payroll.Percentages
	RoutingFile  string
	DataFile     string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	timeout, err := getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	claimTTL, err := getEnvAsInt("REDIS_CLAIM_TTL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvAsInt("PAYROLL_WORKERS", payroll.DefaultWorkers)
	if err != nil {
		return nil, err
	}

	pct := payroll.DefaultPercentages()
	if pct.Kitchen, err = getEnvAsDecimal("PAYROLL_KITCHEN_PERCENTAGE", pct.Kitchen); err != nil {
		return nil, err
	}
	if pct.Bartender, err = getEnvAsDecimal("PAYROLL_BARTENDER_PERCENTAGE", pct.Bartender); err != nil {
		return nil, err
	}
	if err := pct.Validate(); err != nil {
		return nil, err
	}

	dedup := strings.ToLower(getEnv("DEDUP_BACKEND", DedupMemory))
	if dedup != DedupMemory && dedup != DedupRedis {
		return nil, fmt.Errorf("invalid DEDUP_BACKEND %q: want %s or %s", dedup, DedupMemory, DedupRedis)
	}

	cfg := &Config{
		App: AppConfig{
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			RequestTimeoutSeconds: timeout,
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "payroll.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			ClaimTTL: time.Duration(claimTTL) * time.Hour,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Payroll: PayrollConfig{
			Workers:      workers,
			Timezone:     getEnv("PAYROLL_TIMEZONE", "America/Los_Angeles"),
			DedupBackend: dedup,
			Percentages:  pct,
			RoutingFile:  os.Getenv("PAYROLL_ROUTING_FILE"),
			DataFile:     os.Getenv("PAYROLL_DATA_FILE"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the reporting timezone.
func (p PayrollConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_TIMEZONE %q: %w", p.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := decimal.NewFromString(val)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
