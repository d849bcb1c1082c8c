package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/price-tracker/internal/tracker/config"
	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/internal/tracker/notifier"
	"github.com/tair/price-tracker/internal/tracker/status"
	"github.com/tair/price-tracker/pkg/database"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ServiceName:   "price-tracker-test",
		Environment:   "test",
		CheckInterval: time.Hour,
		Workers:       1,
		Database: database.Config{
			Driver: database.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "tracker.db"),
		},
		Extractor: config.ExtractorConfig{Timeout: time.Second, MaxFailures: 5},
	}
}

func TestInitializeStore(t *testing.T) {
	store, cleanup, err := InitializeStore(testConfig(t))
	require.NoError(t, err)
	defer cleanup()

	products, err := store.List.Handle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestInitializeApp(t *testing.T) {
	app, cleanup, err := InitializeApp(testConfig(t))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, time.Hour, app.Scheduler.Interval())
	assert.False(t, app.Scheduler.Running())

	summary, err := app.Engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Total)

	router := mux.NewRouter()
	app.Handler.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestLocalNotifier(t *testing.T) {
	cfg := testConfig(t)
	assert.Len(t, LocalNotifier(cfg), 1)

	cfg.WebhookURL = "http://localhost:9/hook"
	local := LocalNotifier(cfg)
	require.Len(t, local, 2)
	assert.IsType(t, &notifier.WebhookNotifier{}, local[1])

	n, cleanup, err := ProvideNotifier(cfg)
	require.NoError(t, err)
	defer cleanup()
	assert.Len(t, n, 2)
}

func TestProvideStatusStore(t *testing.T) {
	cfg := testConfig(t)

	client, cleanup, err := ProvideRedisClient(cfg)
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, client)
	assert.IsType(t, &status.MemoryStore{}, ProvideStatusStore(cfg, client))
	assert.Nil(t, ProvideRateLimiter(cfg, client))

	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()
	cfg.RedisKey = "test:cycles"
	cfg.RateLimitRequests = 10
	cfg.RateLimitWindow = time.Minute

	client, cleanup, err = ProvideRedisClient(cfg)
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, client)

	store := ProvideStatusStore(cfg, client)
	require.IsType(t, &status.RedisStore{}, store)
	require.NoError(t, store.Save(context.Background(), domain.CycleSummary{ID: "c1"}))
	assert.True(t, mr.Exists("test:cycles"))

	assert.NotNil(t, ProvideRateLimiter(cfg, client))
	cfg.RateLimitRequests = 0
	assert.Nil(t, ProvideRateLimiter(cfg, client))
}
