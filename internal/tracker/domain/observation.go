package domain

import "time"

// Observation is one price sample of a product. Observations are append-only.
type Observation struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ProductID  uint      `json:"product_id" gorm:"not null;index:idx_price_history_product_time,priority:1"`
	Price      float64   `json:"price" gorm:"not null"`
	ObservedAt time.Time `json:"observed_at" gorm:"column:observed_at;not null;index:idx_price_history_product_time,priority:2"`
}

// TableName specifies the table name
func (Observation) TableName() string {
	return "price_history"
}
