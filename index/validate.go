package index

import (
	"fmt"
	"math"

	"github.com/hupe1980/annkit/space"
)

// ValidateQuery checks that v is a usable vector for a dim-dimensional
// index.
func ValidateQuery[E space.Element](v []E, dim int) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidQuery)
	}
	if len(v) != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}
	if f, ok := any(v).([]float32); ok {
		for i, x := range f {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return fmt.Errorf("%w: non-finite value at position %d", ErrInvalidQuery, i)
			}
		}
	}
	return nil
}

// ValidateK checks a result count.
func ValidateK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidQuery, k)
	}
	return nil
}

// ValidateRadius checks an internal distance radius for metric m. Distance
// metrics never produce negative distances, so a negative radius there is
// a caller error.
func ValidateRadius(m space.Metric, radius float32) error {
	if math.IsNaN(float64(radius)) {
		return fmt.Errorf("%w: radius is NaN", ErrInvalidQuery)
	}
	if !m.IsSimilarity() && radius < 0 {
		return fmt.Errorf("%w: negative radius %g for metric %s", ErrInvalidQuery, radius, m)
	}
	return nil
}

// PrepareQuery validates query against sp and returns it in the form
// the space compares.
func PrepareQuery[E space.Element](sp space.Space[E], query []E) ([]E, error) {
	if err := ValidateQuery(query, sp.Dim()); err != nil {
		return nil, err
	}
	q, err := sp.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return q, nil
}
