package repository

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

var tracer = otel.Tracer("price-tracker-repository")

// GormProductRepositoryWithTracing wraps GormProductRepository with tracing
type GormProductRepositoryWithTracing struct {
	*GormProductRepository
}

// NewGormProductRepositoryWithTracing creates a new repository with tracing
func NewGormProductRepositoryWithTracing(db *gorm.DB) *GormProductRepositoryWithTracing {
	return &GormProductRepositoryWithTracing{
		GormProductRepository: NewGormProductRepository(db),
	}
}

// endSpan records err on the span unless it is an expected outcome
func endSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, domain.ErrDuplicateURL) {
		span.SetAttributes(attribute.String("result", err.Error()))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (r *GormProductRepositoryWithTracing) CreateWithSeed(ctx context.Context, product *domain.Product, seed *domain.Observation) (err error) {
	ctx, span := tracer.Start(ctx, "repository.CreateWithSeed",
		trace.WithAttributes(
			attribute.String("product.url", product.URL),
			attribute.Float64("product.target_price", product.TargetPrice),
			attribute.Float64("observation.price", seed.Price),
		),
	)
	defer func() { endSpan(span, err) }()

	if err = r.GormProductRepository.CreateWithSeed(ctx, product, seed); err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("product.id", int(product.ID)))
	return nil
}

func (r *GormProductRepositoryWithTracing) FindByURL(ctx context.Context, url string) (product *domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "repository.FindByURL",
		trace.WithAttributes(attribute.String("product.url", url)),
	)
	defer func() { endSpan(span, err) }()

	return r.GormProductRepository.FindByURL(ctx, url)
}

func (r *GormProductRepositoryWithTracing) FindAll(ctx context.Context) (products []domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "repository.FindAll")
	defer func() { endSpan(span, err) }()

	products, err = r.GormProductRepository.FindAll(ctx)
	span.SetAttributes(attribute.Int("result.count", len(products)))
	return products, err
}

func (r *GormProductRepositoryWithTracing) ListWithLatest(ctx context.Context) (products []domain.ProductWithLatest, err error) {
	ctx, span := tracer.Start(ctx, "repository.ListWithLatest")
	defer func() { endSpan(span, err) }()

	products, err = r.GormProductRepository.ListWithLatest(ctx)
	span.SetAttributes(attribute.Int("result.count", len(products)))
	return products, err
}

func (r *GormProductRepositoryWithTracing) RecordObservation(ctx context.Context, obs *domain.Observation) (err error) {
	ctx, span := tracer.Start(ctx, "repository.RecordObservation",
		trace.WithAttributes(
			attribute.Int("product.id", int(obs.ProductID)),
			attribute.Float64("observation.price", obs.Price),
		),
	)
	defer func() { endSpan(span, err) }()

	return r.GormProductRepository.RecordObservation(ctx, obs)
}

func (r *GormProductRepositoryWithTracing) MarkChecked(ctx context.Context, productID uint, name string, at time.Time) (err error) {
	ctx, span := tracer.Start(ctx, "repository.MarkChecked",
		trace.WithAttributes(attribute.Int("product.id", int(productID))),
	)
	defer func() { endSpan(span, err) }()

	return r.GormProductRepository.MarkChecked(ctx, productID, name, at)
}

func (r *GormProductRepositoryWithTracing) UpdateLastNotified(ctx context.Context, productID uint, price float64) (claimed bool, err error) {
	ctx, span := tracer.Start(ctx, "repository.UpdateLastNotified",
		trace.WithAttributes(
			attribute.Int("product.id", int(productID)),
			attribute.Float64("product.last_notified_price", price),
		),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("alert.claimed", claimed))
		endSpan(span, err)
	}()

	return r.GormProductRepository.UpdateLastNotified(ctx, productID, price)
}

func (r *GormProductRepositoryWithTracing) DeleteByURL(ctx context.Context, url string) (err error) {
	ctx, span := tracer.Start(ctx, "repository.DeleteByURL",
		trace.WithAttributes(attribute.String("product.url", url)),
	)
	defer func() { endSpan(span, err) }()

	return r.GormProductRepository.DeleteByURL(ctx, url)
}

func (r *GormProductRepositoryWithTracing) DeleteAll(ctx context.Context) (removed int64, err error) {
	ctx, span := tracer.Start(ctx, "repository.DeleteAll")
	defer func() { endSpan(span, err) }()

	removed, err = r.GormProductRepository.DeleteAll(ctx)
	span.SetAttributes(attribute.Int64("result.removed", removed))
	return removed, err
}

func (r *GormProductRepositoryWithTracing) History(ctx context.Context, url string) (history []domain.Observation, err error) {
	ctx, span := tracer.Start(ctx, "repository.History",
		trace.WithAttributes(attribute.String("product.url", url)),
	)
	defer func() { endSpan(span, err) }()

	history, err = r.GormProductRepository.History(ctx, url)
	span.SetAttributes(attribute.Int("result.count", len(history)))
	return history, err
}

func (r *GormProductRepositoryWithTracing) Count(ctx context.Context) (count int64, err error) {
	ctx, span := tracer.Start(ctx, "repository.Count")
	defer func() { endSpan(span, err) }()

	return r.GormProductRepository.Count(ctx)
}
