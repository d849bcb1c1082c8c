package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"duplicate", &DuplicateURLError{URL: "https://example.com/a"}, ErrDuplicateURL},
		{"extraction", NewExtractionError("https://example.com/a", NetworkError, cause), ErrExtraction},
		{"validation", &ValidationError{Field: "target_price", Reason: "must be positive"}, ErrValidation},
		{"storage", &StorageError{Op: "insert", Err: cause}, ErrStorage},
		{"not found", &NotFoundError{URL: "https://example.com/a"}, ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestErrorsAreDistinguishable(t *testing.T) {
	dup := &DuplicateURLError{URL: "u"}
	ext := NewExtractionError("u", ParseError, errors.New("no price"))

	assert.NotErrorIs(t, dup, ErrExtraction)
	assert.NotErrorIs(t, ext, ErrDuplicateURL)
}

func TestExtractionKind(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("check: %w", NewExtractionError("u", NotFound, cause))

	assert.Equal(t, NotFound, ExtractionKind(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, FailureKind(""), ExtractionKind(cause))
}

func TestNewAlert(t *testing.T) {
	p := Product{ID: 7, URL: "https://www.amazon.com/dp/B000", TargetPrice: 50}
	alert := NewAlert(p, "Kettle", 45)

	assert.Equal(t, "Price Drop Alert: Kettle", alert.Title)
	assert.Equal(t, "The price of Kettle has dropped to $45.00!\nCheck it out: https://www.amazon.com/dp/B000", alert.Body)
	assert.Equal(t, uint(7), alert.ProductID)
	assert.Equal(t, 50.0, alert.TargetPrice)
}
