package command

import (
	"context"
	"fmt"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// ClearAllHandler removes every product and observation
type ClearAllHandler struct {
	repo domain.ProductRepository
}

// NewClearAllHandler creates a new clear all handler
func NewClearAllHandler(repo domain.ProductRepository) *ClearAllHandler {
	return &ClearAllHandler{repo: repo}
}

// Handle returns the number of products removed
func (h *ClearAllHandler) Handle(ctx context.Context) (int64, error) {
	removed, err := h.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear products: %w", err)
	}
	return removed, nil
}
