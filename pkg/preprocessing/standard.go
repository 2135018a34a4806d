// Package preprocessing provides feature scaling for detector inputs.
package preprocessing

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"
)

// StandardScaler removes the per-feature mean and scales to unit variance.
// Features with zero variance are only centered.
type StandardScaler struct {
	mean   []float64
	scale  []float64
	fitted bool
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit learns per-column mean and population standard deviation.
func (s *StandardScaler) Fit(data [][]float64) error {
	if len(data) == 0 || len(data[0]) == 0 {
		return errors.New("empty data")
	}

	nFeatures := len(data[0])
	mean := make([]float64, nFeatures)
	scale := make([]float64, nFeatures)
	column := make([]float64, len(data))

	for j := 0; j < nFeatures; j++ {
		for i, row := range data {
			if len(row) != nFeatures {
				return fmt.Errorf("row %d has %d features, want %d", i, len(row), nFeatures)
			}
			column[i] = row[j]
		}

		m, err := stats.Mean(column)
		if err != nil {
			return fmt.Errorf("feature %d mean: %w", j, err)
		}
		sd, err := stats.StandardDeviationPopulation(column)
		if err != nil {
			return fmt.Errorf("feature %d std: %w", j, err)
		}
		if sd == 0 {
			sd = 1
		}
		mean[j], scale[j] = m, sd
	}

	s.mean, s.scale, s.fitted = mean, scale, true
	return nil
}

// Transform returns a standardized copy of data.
func (s *StandardScaler) Transform(data [][]float64) ([][]float64, error) {
	if !s.fitted {
		return nil, errors.New("scaler not fitted")
	}

	out := make([][]float64, len(data))
	for i, row := range data {
		if len(row) != len(s.mean) {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), len(s.mean))
		}
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = (v - s.mean[j]) / s.scale[j]
		}
	}
	return out, nil
}

// FitTransform fits the scaler and transforms data in one call.
func (s *StandardScaler) FitTransform(data [][]float64) ([][]float64, error) {
	if err := s.Fit(data); err != nil {
		return nil, err
	}
	return s.Transform(data)
}

// Mean returns the fitted per-feature means.
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.mean...) }

// Scale returns the fitted per-feature scales.
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale...) }
