package domain

import (
	"context"
	"time"
)

// Product represents a tracked item
type Product struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	URL               string     `json:"url" gorm:"not null;uniqueIndex"`
	Name              string     `json:"name"`
	TargetPrice       float64    `json:"target_price" gorm:"not null"`
	LastNotifiedPrice *float64   `json:"last_notified_price"`
	LastCheckedAt     *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Observations []Observation `json:"-" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}

// ShouldAlert reports whether price warrants a notification for this product
func (p *Product) ShouldAlert(price float64) bool {
	return ShouldAlert(price, p.TargetPrice, p.LastNotifiedPrice)
}

// ShouldAlert is the strict-improvement rule: alert when the price is at or
// below target and strictly lower than the last notified price, if any.
func ShouldAlert(price, target float64, lastNotified *float64) bool {
	if price > target {
		return false
	}
	return lastNotified == nil || price < *lastNotified
}

// ProductWithLatest pairs a product with its most recent observation.
// Latest is nil when the product has no observation.
type ProductWithLatest struct {
	Product
	Latest *Observation `json:"latest,omitempty"`
}

// LatestPrice returns the latest observed price and whether one exists
func (p ProductWithLatest) LatestPrice() (float64, bool) {
	if p.Latest == nil {
		return 0, false
	}
	return p.Latest.Price, true
}

// ProductRepository defines the contract for product and price history storage.
// Every method is atomic on its own.
type ProductRepository interface {
	// CreateWithSeed inserts the product and its first observation together
	CreateWithSeed(ctx context.Context, product *Product, seed *Observation) error
	FindByURL(ctx context.Context, url string) (*Product, error)
	FindAll(ctx context.Context) ([]Product, error)
	ListWithLatest(ctx context.Context) ([]ProductWithLatest, error)
	// RecordObservation appends a sample; ErrProductNotFound if the product is gone
	RecordObservation(ctx context.Context, obs *Observation) error
	MarkChecked(ctx context.Context, productID uint, name string, at time.Time) error
	// UpdateLastNotified claims an alert for price; false means it was already claimed
	UpdateLastNotified(ctx context.Context, productID uint, price float64) (bool, error)
	DeleteByURL(ctx context.Context, url string) error
	DeleteAll(ctx context.Context) (int64, error)
	History(ctx context.Context, url string) ([]Observation, error)
	Count(ctx context.Context) (int64, error)
}
