package kafka

import (
	"time"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// PriceDropEvent is published for every price drop alert
type PriceDropEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ProductID   uint      `json:"product_id"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	TargetPrice float64   `json:"target_price"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewPriceDropEvent converts an alert into an event
func NewPriceDropEvent(alert domain.Alert) PriceDropEvent {
	return PriceDropEvent{
		EventType:   EventTypePriceDrop,
		ProductID:   alert.ProductID,
		URL:         alert.URL,
		Name:        alert.Name,
		Price:       alert.Price,
		TargetPrice: alert.TargetPrice,
		Title:       alert.Title,
		Body:        alert.Body,
	}
}

// Alert converts the event back into an alert
func (e PriceDropEvent) Alert() domain.Alert {
	return domain.Alert{
		ProductID:   e.ProductID,
		Name:        e.Name,
		URL:         e.URL,
		Price:       e.Price,
		TargetPrice: e.TargetPrice,
		Title:       e.Title,
		Body:        e.Body,
	}
}

// Event types
const (
	EventTypePriceDrop = "price.dropped"
)

// Kafka topics
const (
	TopicPriceDrops = "price-drops"
)
