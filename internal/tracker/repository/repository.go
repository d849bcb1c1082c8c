package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

const latestObservationsQuery = `
SELECT ph.id, ph.product_id, ph.price, ph.observed_at
FROM price_history ph
WHERE ph.id = (
    SELECT ph2.id FROM price_history ph2
    WHERE ph2.product_id = ph.product_id
    ORDER BY ph2.observed_at DESC, ph2.id DESC
    LIMIT 1
)`

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Product{}, &domain.Observation{})
}

func (r *GormProductRepository) CreateWithSeed(ctx context.Context, product *domain.Product, seed *domain.Observation) error {
	seed.ObservedAt = seed.ObservedAt.UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		seed.ProductID = product.ID
		return tx.Create(seed).Error
	})
	if err == nil {
		return nil
	}

	product.ID = 0
	seed.ID = 0
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &domain.DuplicateURLError{URL: product.URL}
	}
	return storageErr("create product", err)
}

func (r *GormProductRepository) FindByURL(ctx context.Context, url string) (*domain.Product, error) {
	var product domain.Product
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{URL: url}
	}
	if err != nil {
		return nil, storageErr("find product", err)
	}
	return &product, nil
}

func (r *GormProductRepository) FindAll(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&products).Error; err != nil {
		return nil, storageErr("list products", err)
	}
	return products, nil
}

func (r *GormProductRepository) ListWithLatest(ctx context.Context) ([]domain.ProductWithLatest, error) {
	var products []domain.Product
	var latest []domain.Observation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id ASC").Find(&products).Error; err != nil {
			return err
		}
		return tx.Raw(latestObservationsQuery).Scan(&latest).Error
	})
	if err != nil {
		return nil, storageErr("list products", err)
	}

	byProduct := make(map[uint]domain.Observation, len(latest))
	for _, obs := range latest {
		byProduct[obs.ProductID] = obs
	}

	result := make([]domain.ProductWithLatest, 0, len(products))
	for _, p := range products {
		item := domain.ProductWithLatest{Product: p}
		if obs, ok := byProduct[p.ID]; ok {
			item.Latest = &obs
		}
		result = append(result, item)
	}
	return result, nil
}

func (r *GormProductRepository) RecordObservation(ctx context.Context, obs *domain.Observation) error {
	if obs.Price < 0 || math.IsNaN(obs.Price) || math.IsInf(obs.Price, 0) {
		return &domain.ValidationError{Field: "price", Reason: "must be a non-negative number"}
	}

	// sqlite keeps the zone offset in the stored text, so ordering needs one zone
	obs.ObservedAt = obs.ObservedAt.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Product{}).Where("id = ?", obs.ProductID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrProductNotFound
		}

		// keep per-product timestamps non-decreasing
		var latest domain.Observation
		err := tx.Where("product_id = ?", obs.ProductID).
			Order("observed_at DESC, id DESC").
			Limit(1).
			Find(&latest).Error
		if err != nil {
			return err
		}
		if latest.ID != 0 && obs.ObservedAt.Before(latest.ObservedAt) {
			obs.ObservedAt = latest.ObservedAt
		}

		return tx.Create(obs).Error
	})
	if errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return domain.ErrProductNotFound
	}
	return storageErr("record observation", err)
}

func (r *GormProductRepository) MarkChecked(ctx context.Context, productID uint, name string, at time.Time) error {
	updates := map[string]interface{}{"last_checked_at": at.UTC()}
	if name != "" {
		updates["name"] = name
	}

	res := r.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", productID).Updates(updates)
	if res.Error != nil {
		return storageErr("mark checked", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// UpdateLastNotified records price as the last alerted price when it is a
// strict drop below the stored one and within the target. It reports false
// when another check already claimed this drop.
func (r *GormProductRepository) UpdateLastNotified(ctx context.Context, productID uint, price float64) (bool, error) {
	var claimed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Product{}).
			Where("id = ? AND target_price >= ?", productID, price).
			Where("last_notified_price IS NULL OR last_notified_price > ?", price).
			Update("last_notified_price", price)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			claimed = true
			return nil
		}

		var count int64
		if err := tx.Model(&domain.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrProductNotFound
		}
		return nil
	})
	if errors.Is(err, domain.ErrProductNotFound) {
		return false, domain.ErrProductNotFound
	}
	if err != nil {
		return false, storageErr("update last notified", err)
	}
	return claimed, nil
}

func (r *GormProductRepository) DeleteByURL(ctx context.Context, url string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product domain.Product
		if err := tx.Where("url = ?", url).First(&product).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&domain.Observation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Product{}, product.ID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.NotFoundError{URL: url}
	}
	return storageErr("delete product", err)
}

func (r *GormProductRepository) DeleteAll(ctx context.Context) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&domain.Observation{}).Error; err != nil {
			return err
		}
		res := all.Delete(&domain.Product{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, storageErr("clear products", err)
	}
	return removed, nil
}

func (r *GormProductRepository) History(ctx context.Context, url string) ([]domain.Observation, error) {
	product, err := r.FindByURL(ctx, url)
	if err != nil {
		return nil, err
	}

	var history []domain.Observation
	err = r.db.WithContext(ctx).
		Where("product_id = ?", product.ID).
		Order("observed_at ASC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, storageErr("price history", err)
	}
	return history, nil
}

func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Count(&count).Error; err != nil {
		return 0, storageErr("count products", err)
	}
	return count, nil
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.StorageError{Op: op, Err: err}
}
