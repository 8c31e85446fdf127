package rann

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyReferenceSet is returned when a searcher is constructed
	// without reference points.
	ErrEmptyReferenceSet = errors.New("reference set must not be empty")

	// ErrEmptyQuerySet is returned when a search is issued without query
	// points.
	ErrEmptyQuerySet = errors.New("query set must not be empty")

	// ErrInvalidMode is returned when an operation is not available in the
	// configured search mode, e.g. adopting a reference tree in naive mode
	// or passing a prebuilt query tree outside dual-tree mode.
	ErrInvalidMode = errors.New("operation not supported in this search mode")

	// ErrUnsupportedTree is returned when a snapshot is requested for an
	// adopted tree implementation this package cannot serialize.
	ErrUnsupportedTree = errors.New("reference tree does not support snapshots")
)

// ErrDimensionMismatch indicates a reference/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidParameter indicates a configuration value outside its legal
// range, such as a non-positive leaf size or a sampling ratio above one.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidParameter struct {
	Name  string
	Value any
	cause error
}

func (e *ErrInvalidParameter) Error() string {
	return fmt.Sprintf("invalid parameter %s: %v", e.Name, e.Value)
}

func (e *ErrInvalidParameter) Unwrap() error { return e.cause }
