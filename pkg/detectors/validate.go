package detectors

import (
	"fmt"
	"math"
)

// CheckMatrix validates a samples x features matrix and returns its shape.
func CheckMatrix(data [][]float64) (rows, cols int, err error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return 0, 0, ErrEmptyData
	}

	cols = len(data[0])
	for i, row := range data {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), cols, ErrRaggedData)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, fmt.Errorf("value at [%d][%d]: %w", i, j, ErrNonFinite)
			}
		}
	}

	return len(data), cols, nil
}

// CheckSample validates a single sample against the expected feature count.
func CheckSample(sample []float64, nFeatures int) error {
	if len(sample) == 0 {
		return ErrEmptyData
	}
	if len(sample) != nFeatures {
		return fmt.Errorf("got %d features, want %d: %w", len(sample), nFeatures, ErrFeatureMismatch)
	}
	for j, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %d: %w", j, ErrNonFinite)
		}
	}
	return nil
}
