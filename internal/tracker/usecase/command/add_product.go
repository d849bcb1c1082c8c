package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// AddProductCommand represents the command to start tracking a product
type AddProductCommand struct {
	URL         string
	TargetPrice float64
}

// AddProductHandler handles add product command
type AddProductHandler struct {
	repo      domain.ProductRepository
	extractor domain.Extractor
	now       func() time.Time
}

// NewAddProductHandler creates a new add product handler
func NewAddProductHandler(repo domain.ProductRepository, extractor domain.Extractor) *AddProductHandler {
	return &AddProductHandler{repo: repo, extractor: extractor, now: time.Now}
}

// WithClock replaces the time source used for the seed observation
func (h *AddProductHandler) WithClock(now func() time.Time) *AddProductHandler {
	h.now = now
	return h
}

// Handle validates the command, fetches the page once and stores the product
// together with its first observation.
func (h *AddProductHandler) Handle(ctx context.Context, cmd AddProductCommand) (*domain.Product, error) {
	cmd.URL = strings.TrimSpace(cmd.URL)
	if err := validateURL(cmd.URL); err != nil {
		return nil, err
	}

	if cmd.TargetPrice <= 0 || math.IsNaN(cmd.TargetPrice) || math.IsInf(cmd.TargetPrice, 0) {
		return nil, &domain.ValidationError{Field: "target_price", Reason: "must be a positive number"}
	}

	_, err := h.repo.FindByURL(ctx, cmd.URL)
	switch {
	case err == nil:
		return nil, &domain.DuplicateURLError{URL: cmd.URL}
	case !errors.Is(err, domain.ErrProductNotFound):
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}

	extraction, err := h.extractor.Extract(ctx, cmd.URL)
	if err != nil {
		if !errors.Is(err, domain.ErrExtraction) {
			err = domain.NewExtractionError(cmd.URL, domain.NetworkError, err)
		}
		return nil, err
	}
	if extraction.Price < 0 || math.IsNaN(extraction.Price) || math.IsInf(extraction.Price, 0) {
		return nil, domain.NewExtractionError(cmd.URL, domain.ParseError,
			fmt.Errorf("invalid price %v", extraction.Price))
	}

	product := &domain.Product{
		URL:         cmd.URL,
		Name:        extraction.Name,
		TargetPrice: cmd.TargetPrice,
	}
	seed := &domain.Observation{Price: extraction.Price, ObservedAt: h.now().UTC()}

	if err := h.repo.CreateWithSeed(ctx, product, seed); err != nil {
		if errors.Is(err, domain.ErrDuplicateURL) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return &domain.ValidationError{Field: "url", Reason: "is required"}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &domain.ValidationError{Field: "url", Reason: "must be an absolute http(s) url"}
	}
	return nil
}
