package query

import (
	"context"
	"fmt"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// ListProductsHandler handles list products query
type ListProductsHandler struct {
	repo domain.ProductRepository
}

// NewListProductsHandler creates a new list products handler
func NewListProductsHandler(repo domain.ProductRepository) *ListProductsHandler {
	return &ListProductsHandler{repo: repo}
}

// Handle returns every tracked product with its latest observation, ordered by id
func (h *ListProductsHandler) Handle(ctx context.Context) ([]domain.ProductWithLatest, error) {
	products, err := h.repo.ListWithLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}
