package tracker

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/tair/price-tracker/internal/tracker/config"
	trackerhttp "github.com/tair/price-tracker/internal/tracker/delivery/http"
	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/internal/tracker/extractor"
	"github.com/tair/price-tracker/internal/tracker/monitor"
	"github.com/tair/price-tracker/internal/tracker/notifier"
	"github.com/tair/price-tracker/internal/tracker/repository"
	"github.com/tair/price-tracker/internal/tracker/scheduler"
	"github.com/tair/price-tracker/internal/tracker/status"
	"github.com/tair/price-tracker/internal/tracker/usecase/command"
	"github.com/tair/price-tracker/internal/tracker/usecase/query"
	"github.com/tair/price-tracker/kafka"
	"github.com/tair/price-tracker/pkg/database"
	"github.com/tair/price-tracker/pkg/logger"
)

// Store groups the command and query handlers over one repository
type Store struct {
	Repo domain.ProductRepository

	Add    *command.AddProductHandler
	Remove *command.RemoveProductHandler
	Clear  *command.ClearAllHandler

	List    *query.ListProductsHandler
	History *query.GetHistoryHandler
	Product *query.GetProductHandler
}

// NewStore builds every handler for repo
func NewStore(repo domain.ProductRepository, ext domain.Extractor) *Store {
	return &Store{
		Repo:    repo,
		Add:     command.NewAddProductHandler(repo, ext),
		Remove:  command.NewRemoveProductHandler(repo),
		Clear:   command.NewClearAllHandler(repo),
		List:    query.NewListProductsHandler(repo),
		History: query.NewGetHistoryHandler(repo),
		Product: query.NewGetProductHandler(repo),
	}
}

// App is the fully wired server
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Store     *Store
	Engine    *monitor.Engine
	Scheduler *scheduler.Scheduler
	Handler   *trackerhttp.TrackerHandler
	Registry  *prometheus.Registry
}

// ProvideDatabase opens and migrates the configured database
func ProvideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.NewGormConnection(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to close database")
		}
	}

	if err := repository.NewGormProductRepository(db).AutoMigrate(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, cleanup, nil
}

// ProvideProductRepository provides the traced product repository
func ProvideProductRepository(db *gorm.DB) domain.ProductRepository {
	return repository.NewGormProductRepositoryWithTracing(db)
}

// ProvideExtractor provides the colly extractor
func ProvideExtractor(cfg *config.Config) domain.Extractor {
	return extractor.NewCollyExtractor(extractor.Config{
		Timeout:        cfg.Extractor.Timeout,
		NameSelectors:  cfg.Extractor.NameSelectors,
		PriceSelectors: cfg.Extractor.PriceSelectors,
		MaxFailures:    cfg.Extractor.MaxFailures,
		OpenTimeout:    cfg.Extractor.OpenTimeout,
	})
}

// LocalNotifier delivers alerts on this machine: the log, plus the webhook
// when one is configured
func LocalNotifier(cfg *config.Config) notifier.Multi {
	notifiers := notifier.Multi{notifier.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notifier.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	return notifiers
}

// ProvideNotifier adds the Kafka publisher to the local notifiers when brokers are configured
func ProvideNotifier(cfg *config.Config) (domain.Notifier, func(), error) {
	local := LocalNotifier(cfg)
	if len(cfg.KafkaBrokers) == 0 {
		return local, func() {}, nil
	}

	publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to close Kafka publisher")
		}
	}
	return append(local, publisher), cleanup, nil
}

// ProvideRegistry provides a registry with the Go and process collectors
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg prometheus.Registerer) *monitor.Metrics {
	return monitor.NewMetrics(reg)
}

func ProvideEngine(cfg *config.Config, repo domain.ProductRepository, ext domain.Extractor, n domain.Notifier, m *monitor.Metrics) *monitor.Engine {
	return monitor.NewEngine(repo, ext, n,
		monitor.WithWorkers(cfg.Workers),
		monitor.WithMetrics(m),
	)
}

// ProvideRedisClient connects to Redis when REDIS_ADDR is set. The client is
// nil otherwise.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to close Redis client")
		}
	}
	return client, cleanup, nil
}

// ProvideStatusStore keeps cycle summaries in Redis when a client exists, in memory otherwise
func ProvideStatusStore(cfg *config.Config, client *redis.Client) status.Store {
	if client == nil {
		return status.NewMemoryStore(status.DefaultHistorySize)
	}

	logger.Logger.Info().Str("addr", cfg.RedisAddr).Str("key", cfg.RedisKey).Msg("Cycle status stored in Redis")
	return status.NewRedisStore(client, cfg.RedisKey, status.DefaultHistorySize)
}

// ProvideRateLimiter returns nil when Redis is absent or limiting is disabled
func ProvideRateLimiter(cfg *config.Config, client *redis.Client) *trackerhttp.RateLimiter {
	if client == nil || cfg.RateLimitRequests <= 0 {
		return nil
	}
	return trackerhttp.NewRateLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow)
}

func ProvideScheduler(cfg *config.Config, runner scheduler.Runner, store status.Store) *scheduler.Scheduler {
	opts := []scheduler.Option{
		scheduler.WithInterval(cfg.CheckInterval),
		scheduler.WithStatusStore(store),
	}
	if cfg.RunOnStart {
		opts = append(opts, scheduler.WithRunOnStart())
	}
	return scheduler.New(runner, opts...)
}

func ProvideTrackerHandler(cfg *config.Config, store *Store, trigger trackerhttp.CycleTrigger, reg prometheus.Registerer, limiter *trackerhttp.RateLimiter) *trackerhttp.TrackerHandler {
	h := trackerhttp.NewTrackerHandler(
		store.Add,
		store.Remove,
		store.Clear,
		store.List,
		store.History,
		store.Product,
		trigger,
		cfg.JWTSecret,
		reg,
	)
	if limiter != nil {
		h.UseRateLimiter(limiter)
	}
	return h
}
