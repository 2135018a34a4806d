package detectors

import "errors"

var (
	// ErrNotFitted is returned when scoring is requested before Fit.
	ErrNotFitted = errors.New("model not trained")
	// ErrEmptyData is returned for inputs without samples or features.
	ErrEmptyData = errors.New("empty data")
	// ErrRaggedData is returned when rows have different lengths.
	ErrRaggedData = errors.New("rows have inconsistent feature counts")
	// ErrNonFinite is returned when the input contains NaN or Inf.
	ErrNonFinite = errors.New("input contains NaN or Inf")
	// ErrFeatureMismatch is returned when the feature count differs from training.
	ErrFeatureMismatch = errors.New("feature count mismatch")
	// ErrInvalidConfig is returned for out-of-range hyperparameters.
	ErrInvalidConfig = errors.New("invalid configuration")
)
