package index

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned for malformed query or insert vectors:
	// empty, wrong dimension, or non-finite values.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrConcurrentMutation is returned when a mutation overlaps another
	// mutation the backend cannot run concurrently.
	ErrConcurrentMutation = errors.New("concurrent mutation")

	// ErrCorruptPersistedState is returned when a serialized index cannot be
	// decoded: bad header, short data, inconsistent sections or a checksum
	// mismatch.
	ErrCorruptPersistedState = errors.New("corrupt persisted state")

	// ErrIncompatibleIndex is returned when a serialized index is valid but
	// was written by another backend or for another element type.
	ErrIncompatibleIndex = errors.New("incompatible index")

	// ErrReadOnly is returned when mutating an index whose storage aliases a
	// read-only mapping.
	ErrReadOnly = errors.New("index is read-only")
)

// ErrDimensionMismatch reports a vector whose length differs from the
// index dimension. It matches ErrInvalidQuery under errors.Is.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return ErrInvalidQuery }

// Corrupt marks err as a decoding failure. Context errors and errors that
// already carry a classification pass through.
func Corrupt(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCorruptPersistedState),
		errors.Is(err, ErrIncompatibleIndex),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrCorruptPersistedState, err)
	}
}
