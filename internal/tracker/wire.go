//go:build wireinject
// +build wireinject

package tracker

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/price-tracker/internal/tracker/config"
	trackerhttp "github.com/tair/price-tracker/internal/tracker/delivery/http"
	"github.com/tair/price-tracker/internal/tracker/monitor"
	"github.com/tair/price-tracker/internal/tracker/scheduler"
)

// Wire sets
var StoreSet = wire.NewSet(
	ProvideDatabase,
	ProvideProductRepository,
	ProvideExtractor,
	NewStore,
)

var MonitorSet = wire.NewSet(
	ProvideNotifier,
	ProvideRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	ProvideMetrics,
	ProvideEngine,
	wire.Bind(new(scheduler.Runner), new(*monitor.Engine)),
	ProvideRedisClient,
	ProvideStatusStore,
	ProvideScheduler,
)

var DeliverySet = wire.NewSet(
	wire.Bind(new(trackerhttp.CycleTrigger), new(*scheduler.Scheduler)),
	ProvideRateLimiter,
	ProvideTrackerHandler,
)

// InitializeStore wires the repository and handlers for one-shot commands
func InitializeStore(cfg *config.Config) (*Store, func(), error) {
	wire.Build(StoreSet)
	return nil, nil, nil
}

// InitializeApp wires the complete server
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		StoreSet,
		MonitorSet,
		DeliverySet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
