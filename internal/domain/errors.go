package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema signals malformed catalog input.
	ErrSchema = errors.New("catalog schema error")
	// ErrEmptyCatalog signals a catalog with zero usable records.
	ErrEmptyCatalog = errors.New("empty catalog")
	// ErrEncoding signals an unavailable embedding backend or invalid input text.
	ErrEncoding = errors.New("encoding error")
	// ErrDimensionMismatch signals a query vector whose length differs from the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidArgument signals a rejected request parameter (e.g. k < 1).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIndexNotReady signals that no catalog index has been built yet.
	ErrIndexNotReady = errors.New("catalog index not ready")
	// ErrCompletionProviderError signals a chat completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
)

// SchemaError describes a single malformed catalog record.
type SchemaError struct {
	Position int
	Field    string
	Reason   string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: record %d: %s", ErrSchema.Error(), e.Position, e.Reason)
	}
	return fmt.Sprintf("%s: record %d: field %q: %s", ErrSchema.Error(), e.Position, e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// NewSchemaError creates a schema error for the record at position.
func NewSchemaError(position int, field, reason string) error {
	return &SchemaError{Position: position, Field: field, Reason: reason}
}

// DimensionMismatchError wraps ErrDimensionMismatch with the expected and actual lengths.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: index has %d dimensions, query has %d", ErrDimensionMismatch.Error(), e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(want, got int) error {
	return &DimensionMismatchError{Want: want, Got: got}
}
