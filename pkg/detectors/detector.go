// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

import "context"

// Detector is the common interface for all anomaly detection algorithms.
type Detector interface {
	// Fit trains the detector on historical data.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// DecisionFunction returns raw anomaly scores for the given samples.
	// Higher values indicate anomalies.
	DecisionFunction(data [][]float64) ([]float64, error)

	// ScoreOne returns the anomaly score for a single sample.
	ScoreOne(sample []float64) (float64, error)

	// Predict returns binary labels (1 = anomaly) using the fitted threshold.
	Predict(data [][]float64) ([]int, error)
}

// StreamDetector extends Detector with streaming capabilities.
type StreamDetector interface {
	Detector

	// PredictStream processes samples from a channel and outputs scores.
	PredictStream(ctx context.Context, input <-chan []float64, output chan<- Score) error
}

// Score represents an anomaly detection result.
type Score struct {
	// Value is the raw anomaly score.
	Value float64
	// IsAnomaly indicates if the score exceeds the threshold.
	IsAnomaly bool
	// Features contains the original input features.
	Features []float64
	// Metadata contains additional information.
	Metadata map[string]any
}
