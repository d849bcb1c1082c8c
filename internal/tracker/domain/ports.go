package domain

import (
	"context"
	"fmt"
)

// Extraction is the result of fetching a product page
type Extraction struct {
	Name  string
	Price float64
}

// Extractor fetches the current name and price for a product url.
// Failures are returned as *ExtractionError.
type Extractor interface {
	Extract(ctx context.Context, url string) (Extraction, error)
}

// Alert is a price drop notification
type Alert struct {
	ProductID   uint    `json:"product_id"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Price       float64 `json:"price"`
	TargetPrice float64 `json:"target_price"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
}

// NewAlert builds an alert with the human-readable title and body
func NewAlert(p Product, name string, price float64) Alert {
	return Alert{
		ProductID:   p.ID,
		Name:        name,
		URL:         p.URL,
		Price:       price,
		TargetPrice: p.TargetPrice,
		Title:       fmt.Sprintf("Price Drop Alert: %s", name),
		Body:        fmt.Sprintf("The price of %s has dropped to $%.2f!\nCheck it out: %s", name, price, p.URL),
	}
}

// Notifier delivers alerts. Delivery is attempted once; callers log failures.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, alert Alert) error

func (f NotifierFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}
