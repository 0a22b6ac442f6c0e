package embeddings

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonFinite is returned when a vector contains NaN or Inf components.
var ErrNonFinite = errors.New("embedding contains non-finite values")

// ErrDimensionMismatch is returned when a vector has the wrong dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Validate checks that the vector has the expected dimension and only finite
// components. A zero vector is degenerate but legal (Distance handles it).
func Validate(vector []float32, dim int) error {
	if len(vector) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dim)
	}

	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d", ErrNonFinite, i)
		}
	}

	return nil
}
