package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/price-tracker/pkg/database"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "price_tracker.db", cfg.Database.Path)
	assert.Equal(t, 12*time.Hour, cfg.CheckInterval)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.Extractor.Timeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 30, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("CHECK_INTERVAL", "30m")
	t.Setenv("CHECK_WORKERS", "4")
	t.Setenv("RUN_ON_START", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SCRAPE_PRICE_SELECTORS", ".price,.offer-price")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CORS_ORIGINS", "https://dashboard.example")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.RunOnStart)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{".price", ".offer-price"}, cfg.Extractor.PriceSelectors)
	assert.Equal(t, []string{"https://dashboard.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestFromEnv_InvalidValues(t *testing.T) {
	t.Setenv("CHECK_INTERVAL", "soon")
	t.Setenv("CHECK_WORKERS", "0")
	t.Setenv("RUN_ON_START", "maybe")
	t.Setenv("DB_DRIVER", "mysql")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECK_INTERVAL")
	assert.Contains(t, err.Error(), "RUN_ON_START")
	assert.Contains(t, err.Error(), "CHECK_WORKERS")
	assert.Contains(t, err.Error(), "DB_DRIVER")
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_PORT=9191\nWEBHOOK_URL=http://hooks.test/a\n"), 0o600))
	t.Chdir(dir)
	t.Cleanup(func() {
		os.Unsetenv("HTTP_PORT")
		os.Unsetenv("WEBHOOK_URL")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.HTTPPort)
	assert.Equal(t, "http://hooks.test/a", cfg.WebhookURL)
}
