package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrModelUnavailable  = errors.New("demand model not loaded")
	ErrUpstream          = errors.New("upstream failure")
	ErrDuplicateRequest  = errors.New("duplicate request")

	// ErrConnection marks upstream failures caused by the connection itself
	// rather than by the statement. Only these are worth retrying.
	ErrConnection = fmt.Errorf("%w: connection failure", ErrUpstream)
)

const (
	KindNotFound          = "NOT_FOUND"
	KindInvalidInput      = "INVALID_INPUT"
	KindInsufficientStock = "INSUFFICIENT_STOCK"
	KindModelUnavailable  = "MODEL_UNAVAILABLE"
	KindUpstream          = "UPSTREAM_FAILURE"
	KindDuplicateRequest  = "DUPLICATE_REQUEST"
	KindInternal          = "INTERNAL"
)

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrModelUnavailable):
		return KindModelUnavailable
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrDuplicateRequest):
		return KindDuplicateRequest
	default:
		return KindInternal
	}
}

// BulkWriteError is returned by a bulk write that applied some operations
// but not others. Applied and Failed are aggregate counts over the write.
type BulkWriteError struct {
	Applied int
	Failed  int
	Cause   error
}

func (e *BulkWriteError) Error() string {
	return fmt.Sprintf("bulk write partially applied: %d applied, %d failed: %v", e.Applied, e.Failed, e.Cause)
}

func (e *BulkWriteError) Unwrap() []error {
	return []error{ErrUpstream, e.Cause}
}
