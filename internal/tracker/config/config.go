package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tair/price-tracker/pkg/database"
	"github.com/tair/price-tracker/pkg/tracing"
)

// Config holds the price tracker configuration
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string
	HTTPPort    string
	CORSOrigins []string

	Database database.Config

	CheckInterval time.Duration
	Workers       int
	RunOnStart    bool

	Extractor ExtractorConfig

	WebhookURL     string
	WebhookTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	// Mutating API calls per caller and window; needs Redis, 0 disables
	RateLimitRequests int
	RateLimitWindow   time.Duration

	JWTSecret string

	TracingEnabled bool
	JaegerEndpoint string
}

// ExtractorConfig configures page scraping
type ExtractorConfig struct {
	Timeout        time.Duration
	NameSelectors  []string
	PriceSelectors []string
	MaxFailures    int
	OpenTimeout    time.Duration
}

// IsDevelopment reports whether console logging should be used
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads the configuration from the environment. Values from a .env file
// in the working directory are loaded first without overriding the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "price-tracker"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		Database: database.Config{
			Driver:   getEnv("DB_DRIVER", database.DriverSQLite),
			Path:     getEnv("DB_PATH", "price_tracker.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "price_tracker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		CheckInterval: p.duration("CHECK_INTERVAL", 12*time.Hour),
		Workers:       p.int("CHECK_WORKERS", 1),
		RunOnStart:    p.bool("RUN_ON_START", false),

		Extractor: ExtractorConfig{
			Timeout:        p.duration("SCRAPE_TIMEOUT", 10*time.Second),
			NameSelectors:  getEnvList("SCRAPE_NAME_SELECTORS", nil),
			PriceSelectors: getEnvList("SCRAPE_PRICE_SELECTORS", nil),
			MaxFailures:    p.int("SCRAPE_BREAKER_FAILURES", 5),
			OpenTimeout:    p.duration("SCRAPE_BREAKER_TIMEOUT", 5*time.Minute),
		},

		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		WebhookTimeout: p.duration("WEBHOOK_TIMEOUT", 10*time.Second),

		KafkaBrokers: getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "price-drops"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "price-tracker-relay"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0),
		RedisKey:      getEnv("REDIS_STATUS_KEY", "price-tracker:cycles"),

		RateLimitRequests: p.int("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   p.duration("RATE_LIMIT_WINDOW", time.Minute),

		JWTSecret: getEnv("JWT_SECRET", ""),

		TracingEnabled: p.bool("TRACING_ENABLED", false),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", tracing.DefaultJaegerEndpoint),
	}

	if err := errors.Join(p.err(), cfg.Validate()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("CHECK_INTERVAL must be positive"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("CHECK_WORKERS must be at least 1"))
	}
	if c.Extractor.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("SCRAPE_TIMEOUT must be positive"))
	}
	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q", database.DriverSQLite, database.DriverPostgres))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser collects conversion errors so that every bad variable is reported at once
type parser struct {
	errs []error
}

func (p *parser) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return n
}

func (p *parser) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return defaultValue
	}
	return b
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return defaultValue
	}
	return d
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}
