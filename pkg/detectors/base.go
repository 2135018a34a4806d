package detectors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultContamination is the expected proportion of anomalies used when none is set.
const DefaultContamination = 0.1

// Base holds the fitted state shared by all detectors: the training scores,
// the contamination threshold and the binary labels derived from it.
type Base struct {
	contamination float64

	decisionScores []float64
	threshold      float64
	labels         []int
}

// NewBase validates contamination and returns an unfitted Base.
func NewBase(contamination float64) (Base, error) {
	if err := ValidateContamination(contamination); err != nil {
		return Base{}, err
	}
	return Base{contamination: contamination}, nil
}

// ValidateContamination checks that c lies in (0, 0.5].
func ValidateContamination(c float64) error {
	if !(c > 0 && c <= 0.5) {
		return fmt.Errorf("contamination must be in (0, 0.5], got %g: %w", c, ErrInvalidConfig)
	}
	return nil
}

// Process stores the training scores and derives the threshold as the
// (1-contamination) quantile, labeling every score above it as an anomaly.
func (b *Base) Process(scores []float64) {
	b.decisionScores = append([]float64(nil), scores...)

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	b.threshold = stat.Quantile(1-b.contamination, stat.LinInterp, sorted, nil)

	b.labels = b.Label(scores)
}

// Label applies the fitted threshold to scores.
func (b *Base) Label(scores []float64) []int {
	labels := make([]int, len(scores))
	for i, s := range scores {
		if s > b.threshold {
			labels[i] = 1
		}
	}
	return labels
}

// Contamination returns the configured contamination.
func (b *Base) Contamination() float64 { return b.contamination }

// Threshold returns the fitted anomaly threshold.
func (b *Base) Threshold() float64 { return b.threshold }

// DecisionScores returns a copy of the training scores.
func (b *Base) DecisionScores() []float64 {
	return append([]float64(nil), b.decisionScores...)
}

// Labels returns a copy of the training labels.
func (b *Base) Labels() []int {
	return append([]int(nil), b.labels...)
}
