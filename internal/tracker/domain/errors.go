package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateURL    = errors.New("url is already tracked")
	ErrExtraction      = errors.New("extraction failed")
	ErrValidation      = errors.New("validation failed")
	ErrStorage         = errors.New("storage failure")
	ErrProductNotFound = errors.New("product not found")
)

// FailureKind classifies extractor failures
type FailureKind string

const (
	NetworkError FailureKind = "network"
	ParseError   FailureKind = "parse"
	NotFound     FailureKind = "not_found"
)

// DuplicateURLError is returned when adding a url that is already tracked
type DuplicateURLError struct {
	URL string
}

func (e *DuplicateURLError) Error() string {
	return fmt.Sprintf("url %q is already tracked", e.URL)
}

func (e *DuplicateURLError) Is(target error) bool {
	return target == ErrDuplicateURL
}

// ExtractionError wraps a failed extractor call
type ExtractionError struct {
	URL  string
	Kind FailureKind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// NewExtractionError builds an ExtractionError
func NewExtractionError(url string, kind FailureKind, err error) *ExtractionError {
	return &ExtractionError{URL: url, Kind: kind, Err: err}
}

// ValidationError reports user-correctable input problems
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StorageError wraps an I/O failure of the persistence layer
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NotFoundError is returned when operating on an untracked url
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("url %q is not tracked", e.URL)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// ExtractionKind returns the failure kind of err, or "" if err is not an extraction failure
func ExtractionKind(err error) FailureKind {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Kind
	}
	return ""
}
