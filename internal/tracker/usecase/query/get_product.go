package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// GetProductQuery represents the query for a single product
type GetProductQuery struct {
	URL string
}

// GetProductHandler handles get product query
type GetProductHandler struct {
	repo domain.ProductRepository
}

// NewGetProductHandler creates a new get product handler
func NewGetProductHandler(repo domain.ProductRepository) *GetProductHandler {
	return &GetProductHandler{repo: repo}
}

// Handle returns the product and its latest observation
func (h *GetProductHandler) Handle(ctx context.Context, q GetProductQuery) (*domain.ProductWithLatest, error) {
	url := strings.TrimSpace(q.URL)
	if url == "" {
		return nil, &domain.ValidationError{Field: "url", Reason: "is required"}
	}

	history, err := h.repo.History(ctx, url)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	product, err := h.repo.FindByURL(ctx, url)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	result := &domain.ProductWithLatest{Product: *product}
	if n := len(history); n > 0 {
		latest := history[n-1]
		result.Latest = &latest
	}
	return result, nil
}
