package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// RemoveProductCommand represents the command to stop tracking a product
type RemoveProductCommand struct {
	URL string
}

// RemoveProductHandler handles remove product command
type RemoveProductHandler struct {
	repo domain.ProductRepository
}

// NewRemoveProductHandler creates a new remove product handler
func NewRemoveProductHandler(repo domain.ProductRepository) *RemoveProductHandler {
	return &RemoveProductHandler{repo: repo}
}

// Handle deletes the product and its whole price history
func (h *RemoveProductHandler) Handle(ctx context.Context, cmd RemoveProductCommand) error {
	url := strings.TrimSpace(cmd.URL)
	if url == "" {
		return &domain.ValidationError{Field: "url", Reason: "is required"}
	}

	if err := h.repo.DeleteByURL(ctx, url); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to remove product: %w", err)
	}

	return nil
}
