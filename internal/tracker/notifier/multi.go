package notifier

import (
	"context"
	"errors"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// Multi fans an alert out to every notifier. All notifiers are tried; the
// joined errors are returned.
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, alert domain.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
