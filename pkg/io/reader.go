// Package io provides input/output utilities for data ingestion.
package io

import "context"

// Reader is the interface for reading data from various sources.
type Reader interface {
	// Read returns the complete dataset.
	Read() ([][]float64, error)

	// Stream returns a channel of samples for real-time processing.
	Stream(ctx context.Context) (<-chan []float64, error)

	// Close releases resources.
	Close() error
}

// FeatureExtractor names the columns a reader produces.
type FeatureExtractor interface {
	// FeatureNames returns the names of extracted features.
	FeatureNames() []string
}

// Writer is the interface for writing detection results.
type Writer interface {
	// Write outputs a single result.
	Write(result Result) error

	// WriteAll outputs multiple results.
	WriteAll(results []Result) error

	// Close flushes and releases resources.
	Close() error
}

// Result represents an anomaly detection result.
type Result struct {
	Index     int            `json:"index"`
	Score     float64        `json:"score"`
	IsAnomaly bool           `json:"is_anomaly"`
	Features  []float64      `json:"features,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Results pairs scores with their samples, labeling scores above threshold.
func Results(samples [][]float64, scores []float64, threshold float64) []Result {
	out := make([]Result, len(scores))
	for i, s := range scores {
		out[i] = Result{
			Index:     i,
			Score:     s,
			IsAnomaly: s > threshold,
		}
		if i < len(samples) {
			out[i].Features = samples[i]
		}
	}
	return out
}
