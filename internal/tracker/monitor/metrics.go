package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	cycles        *prometheus.CounterVec
	checks        *prometheus.CounterVec
	alerts        prometheus.Counter
	notifyErrors  prometheus.Counter
	cycleDuration prometheus.Histogram
	products      prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_tracker_cycles_total",
				Help: "Total number of check cycles by outcome",
			},
			[]string{"result"},
		),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_tracker_checks_total",
				Help: "Total number of product checks by outcome",
			},
			[]string{"result"},
		),
		alerts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "price_tracker_alerts_total",
				Help: "Total number of price drop alerts raised",
			},
		),
		notifyErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "price_tracker_notify_errors_total",
				Help: "Total number of alerts the notifier failed to deliver",
			},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "price_tracker_cycle_duration_seconds",
				Help:    "Duration of check cycles in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		products: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "price_tracker_tracked_products",
				Help: "Number of products in the last cycle snapshot",
			},
		),
	}

	reg.MustRegister(m.cycles, m.checks, m.alerts, m.notifyErrors, m.cycleDuration, m.products)
	return m
}

func (m *Metrics) observeCheck(result string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(result).Inc()
}

func (m *Metrics) observeAlert(delivered bool) {
	if m == nil {
		return
	}
	m.alerts.Inc()
	if !delivered {
		m.notifyErrors.Inc()
	}
}

func (m *Metrics) observeCycle(summary domain.CycleSummary, duration time.Duration) {
	if m == nil {
		return
	}

	result := "ok"
	switch {
	case summary.Aborted:
		result = "aborted"
	case summary.Degraded():
		result = "degraded"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	m.products.Set(float64(summary.Total))
}
