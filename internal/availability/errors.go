package availability

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable is returned when the reservation store cannot be
	// read. Callers must not treat it as zero commitments.
	ErrStoreUnavailable = errors.New("reservation store unavailable")

	// ErrTimeout is returned when the store did not answer before the
	// caller's deadline.
	ErrTimeout = errors.New("reservation store timed out")

	// ErrInvalidDate is returned for malformed dates and for dates before
	// the restaurant's current day.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidCapacity is returned for a negative capacity override or
	// one above MaxCapacityLimit.
	ErrInvalidCapacity = errors.New("invalid capacity")

	// ErrUnknownSlot is returned for a time that is not in the catalog.
	ErrUnknownSlot = errors.New("unknown slot")
)

// StoreError carries the classified failure (ErrStoreUnavailable or
// ErrTimeout) together with the underlying driver error.
type StoreError struct {
	Kind error
	Err  error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%v: %v", e.Kind, e.Err) }

func (e *StoreError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Classify wraps a raw store error as ErrTimeout when the deadline expired
// and ErrStoreUnavailable otherwise. Already classified errors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	kind := ErrStoreUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &StoreError{Kind: kind, Err: err}
}
