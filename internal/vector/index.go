// Package vector provides the exact nearest-neighbor vector index.
package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension,
	// or when an empty vector is offered.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyIndex is returned when searching an index that holds no vectors.
	ErrEmptyIndex = errors.New("vector index is empty")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be greater than 0")
	// ErrNonFiniteVector is returned when a stored or query vector holds NaN or ±Inf.
	ErrNonFiniteVector = errors.New("vector has a non-finite component")
)

// DimensionError describes a rejected vector. Position is the offset within the
// offending batch for AddBatch, the would-be index position for Add, and -1 for queries.
type DimensionError struct {
	Expected int
	Actual   int
	Position int
}

func (e *DimensionError) Error() string {
	if e.Actual == 0 && e.Position < 0 {
		return fmt.Sprintf("%s: query is empty", ErrDimensionMismatch)
	}
	if e.Actual == 0 {
		return fmt.Sprintf("%s: empty vector at position %d", ErrDimensionMismatch, e.Position)
	}
	if e.Position < 0 {
		return fmt.Sprintf("%s: query has %d dimensions, index expects %d", ErrDimensionMismatch, e.Actual, e.Expected)
	}
	return fmt.Sprintf("%s: got %d, expected %d (position %d)", ErrDimensionMismatch, e.Actual, e.Expected, e.Position)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// Neighbor is a single search hit: the stored vector's position and its squared
// Euclidean distance to the query.
type Neighbor struct {
	Position int
	Distance float64
}

// checkFinite rejects vectors holding NaN or infinite components. Distances to
// such vectors do not order, so they could never be ranked.
func checkFinite(vec []float32, pos int) error {
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			if pos < 0 {
				return fmt.Errorf("%w: query component %d is %v", ErrNonFiniteVector, i, v)
			}
			return fmt.Errorf("%w: component %d is %v (position %d)", ErrNonFiniteVector, i, v, pos)
		}
	}
	return nil
}
