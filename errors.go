package annkit

import (
	"errors"
	"fmt"

	"github.com/hupe1980/annkit/blobstore"
	"github.com/hupe1980/annkit/config"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/index/hnsw"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
)

var (
	// ErrUnknownIndexKind is returned by New for an unregistered kind.
	ErrUnknownIndexKind = errors.New("unknown index kind")

	// ErrNotBuilt is returned when querying or saving an index that has
	// not been built or loaded.
	ErrNotBuilt = errors.New("index not built")

	// ErrNotSupported is returned when the index kind lacks an operation.
	ErrNotSupported = errors.New("operation not supported by index kind")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("index closed")
)

// Re-exported failure classes, so callers need only this package for
// errors.Is checks.
var (
	ErrMissingRequiredParam  = config.ErrMissingRequiredParam
	ErrTypeConflict          = config.ErrTypeConflict
	ErrOutOfRange            = config.ErrOutOfRange
	ErrArithmeticOverflow    = config.ErrArithmeticOverflow
	ErrInvalidQuery          = index.ErrInvalidQuery
	ErrConcurrentMutation    = index.ErrConcurrentMutation
	ErrCorruptPersistedState = index.ErrCorruptPersistedState
	ErrIncompatibleIndex     = index.ErrIncompatibleIndex
	ErrReadOnly              = index.ErrReadOnly
	ErrNotFound              = blobstore.ErrNotFound
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// translateError maps backend errors onto the facade's taxonomy. The
// original error stays in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pe *config.ParamError
	if errors.As(err, &pe) {
		return err
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	switch {
	case errors.Is(err, space.ErrInvalidDimension),
		errors.Is(err, space.ErrMetricElementMismatch),
		errors.Is(err, space.ErrUnknownMetric),
		errors.Is(err, hnsw.ErrInvalidM):
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	case persistence.IsChecksumMismatch(err) && !errors.Is(err, ErrCorruptPersistedState):
		return fmt.Errorf("%w: %w", ErrCorruptPersistedState, err)
	}
	return err
}
