package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/pkg/logger"
)

var tracer = otel.Tracer("price-tracker-monitor")

// Engine runs check cycles over every tracked product
type Engine struct {
	repo      domain.ProductRepository
	extractor domain.Extractor
	notifier  domain.Notifier

	workers int
	now     func() time.Time
	metrics *Metrics
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers bounds how many products are checked concurrently. Values below 1 mean sequential.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithClock sets the time source for observation timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics records cycle and check metrics
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a new monitor engine
func NewEngine(repo domain.ProductRepository, extractor domain.Extractor, notifier domain.Notifier, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		extractor: extractor,
		notifier:  notifier,
		workers:   1,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

type checkResult int

const (
	resultSkipped checkResult = iota
	resultChecked
	resultFailed
)

// RunCycle checks every product that exists when the cycle starts.
// Cancelling ctx stops the cycle between products; a product whose check has
// started is finished. A storage failure stops the cycle and is returned with
// the partial summary.
func (e *Engine) RunCycle(ctx context.Context) (summary domain.CycleSummary, err error) {
	summary = domain.CycleSummary{ID: uuid.NewString(), StartedAt: e.now()}

	ctx, span := tracer.Start(ctx, "monitor.RunCycle",
		trace.WithAttributes(attribute.String("cycle.id", summary.ID)),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("cycle.total", summary.Total),
			attribute.Int("cycle.checked", summary.Checked),
			attribute.Int("cycle.failed", summary.Failed),
			attribute.Int("cycle.alerts", summary.Alerts),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	products, err := e.repo.FindAll(ctx)
	if err != nil {
		summary.Aborted = true
		summary.CompletedAt = e.now()
		return summary, fmt.Errorf("failed to load products: %w", err)
	}
	summary.Total = len(products)

	logger.Info(ctx).
		Str("cycle_id", summary.ID).
		Int("products", summary.Total).
		Msg("Check cycle started")

	var mu sync.Mutex
	record := func(result checkResult, alerted bool) {
		mu.Lock()
		defer mu.Unlock()
		switch result {
		case resultChecked:
			summary.Checked++
		case resultFailed:
			summary.Failed++
		}
		if alerted {
			summary.Alerts++
		}
	}

	if e.workers == 1 {
		err = e.runSequential(ctx, products, record)
	} else {
		err = e.runPool(ctx, products, record)
	}

	summary.Skipped = summary.Total - summary.Checked - summary.Failed
	summary.Aborted = err != nil || (ctx.Err() != nil && summary.Skipped > 0)
	summary.CompletedAt = e.now()
	e.metrics.observeCycle(summary, summary.Duration())

	event := logger.Info(ctx)
	if summary.Degraded() || summary.Aborted {
		event = logger.Warn(ctx)
	}
	event.
		Str("cycle_id", summary.ID).
		Int("total", summary.Total).
		Int("checked", summary.Checked).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("alerts", summary.Alerts).
		Bool("aborted", summary.Aborted).
		Dur("duration", summary.Duration()).
		Msg("Check cycle completed")

	return summary, err
}

func (e *Engine) runSequential(ctx context.Context, products []domain.Product, record func(checkResult, bool)) error {
	for _, p := range products {
		if ctx.Err() != nil {
			return nil
		}
		result, alerted, err := e.checkProduct(ctx, p)
		record(result, alerted)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runPool(ctx context.Context, products []domain.Product, record func(checkResult, bool)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, p := range products {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, alerted, err := e.checkProduct(gctx, p)
			record(result, alerted)
			return err
		})
	}
	return g.Wait()
}

// checkProduct fetches one product, appends the observation and applies the
// alert rule. Writes are detached from ctx so that a started step completes.
func (e *Engine) checkProduct(ctx context.Context, p domain.Product) (checkResult, bool, error) {
	ctx, span := tracer.Start(ctx, "monitor.checkProduct",
		trace.WithAttributes(
			attribute.Int("product.id", int(p.ID)),
			attribute.String("product.url", p.URL),
		),
	)
	defer span.End()

	extraction, err := e.extractor.Extract(ctx, p.URL)
	if err == nil && (extraction.Price < 0 || math.IsNaN(extraction.Price) || math.IsInf(extraction.Price, 0)) {
		err = domain.NewExtractionError(p.URL, domain.ParseError, fmt.Errorf("invalid price %v", extraction.Price))
	}
	if err != nil {
		if ctx.Err() != nil {
			return resultSkipped, false, nil
		}
		kind := domain.ExtractionKind(err)
		if kind == "" {
			kind = domain.NetworkError
		}
		span.SetAttributes(attribute.String("check.failure", string(kind)))
		e.metrics.observeCheck(string(kind))
		logger.Warn(ctx).
			Err(err).
			Str("url", p.URL).
			Str("kind", string(kind)).
			Msg("Failed to check product")
		return resultFailed, false, nil
	}

	wctx := context.WithoutCancel(ctx)
	obs := &domain.Observation{ProductID: p.ID, Price: extraction.Price, ObservedAt: e.now().UTC()}
	if err := e.repo.RecordObservation(wctx, obs); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			logger.Debug(ctx).Str("url", p.URL).Msg("Product removed during cycle, dropping observation")
			return resultSkipped, false, nil
		}
		return resultFailed, false, fmt.Errorf("failed to record observation for %s: %w", p.URL, err)
	}
	e.metrics.observeCheck("ok")

	name := extraction.Name
	if name == "" {
		name = p.Name
	}

	alerted := false
	if p.ShouldAlert(extraction.Price) {
		// the conditional update lets only one concurrent check notify a drop;
		// suppression advances even when delivery fails
		claimed, err := e.repo.UpdateLastNotified(wctx, p.ID, extraction.Price)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return resultChecked, false, nil
			}
			return resultChecked, false, fmt.Errorf("failed to update last notified price for %s: %w", p.URL, err)
		}
		if !claimed {
			logger.Debug(ctx).
				Str("url", p.URL).
				Float64("price", extraction.Price).
				Msg("Price drop already alerted by another check")
		} else {
			alerted = true
			alert := domain.NewAlert(p, name, extraction.Price)
			delivered := true
			if err := e.notifier.Notify(wctx, alert); err != nil {
				delivered = false
				logger.Error(ctx).
					Err(err).
					Str("url", p.URL).
					Float64("price", extraction.Price).
					Msg("Failed to deliver price drop alert")
			}
			e.metrics.observeAlert(delivered)
			logger.Info(ctx).
				Str("url", p.URL).
				Str("name", name).
				Float64("price", extraction.Price).
				Float64("target_price", p.TargetPrice).
				Bool("delivered", delivered).
				Msg("Price drop alert raised")
		}
	}

	if err := e.repo.MarkChecked(wctx, p.ID, extraction.Name, obs.ObservedAt); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return resultChecked, alerted, nil
		}
		return resultChecked, alerted, fmt.Errorf("failed to mark %s checked: %w", p.URL, err)
	}

	return resultChecked, alerted, nil
}
