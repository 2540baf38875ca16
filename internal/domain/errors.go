package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidWeights signals a weight configuration that fails validation.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrEmptyCatalog signals a catalog with no entities.
	ErrEmptyCatalog = errors.New("empty catalog")
	// ErrInvalidCatalog signals malformed catalog source data.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrEncoderUnavailable signals that a query could not be encoded.
	ErrEncoderUnavailable = errors.New("encoder unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexUnavailable signals that the vector index could not be queried.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrEmptyValidationSet signals that no usable labelled queries were loaded.
	ErrEmptyValidationSet = errors.New("empty validation set")
)

// DimensionMismatchError reports vectors of unequal length where equal length is required.
type DimensionMismatchError struct {
	Want, Got int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %d, got %d", e.Want, e.Got)
}
