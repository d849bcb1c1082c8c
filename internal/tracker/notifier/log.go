package notifier

import (
	"context"

	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/pkg/logger"
)

// LogNotifier writes alerts to the structured log
type LogNotifier struct{}

// NewLogNotifier creates a new log notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, alert domain.Alert) error {
	logger.Info(ctx).
		Str("title", alert.Title).
		Str("url", alert.URL).
		Float64("price", alert.Price).
		Float64("target_price", alert.TargetPrice).
		Msg(alert.Body)
	return nil
}
