package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// GetHistoryQuery represents the query for a product's price history
type GetHistoryQuery struct {
	URL string
}

// GetHistoryHandler handles get history query
type GetHistoryHandler struct {
	repo domain.ProductRepository
}

// NewGetHistoryHandler creates a new get history handler
func NewGetHistoryHandler(repo domain.ProductRepository) *GetHistoryHandler {
	return &GetHistoryHandler{repo: repo}
}

// Handle returns the observations of a product in chronological order
func (h *GetHistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) ([]domain.Observation, error) {
	url := strings.TrimSpace(q.URL)
	if url == "" {
		return nil, &domain.ValidationError{Field: "url", Reason: "is required"}
	}

	history, err := h.repo.History(ctx, url)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return history, nil
}
