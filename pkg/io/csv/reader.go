// Package csv provides CSV reading of feature matrices and writing of
// detection results.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Reader reads data from CSV files.
type Reader struct {
	file          *os.File
	reader        *csv.Reader
	hasHeader     bool
	skipMalformed bool
	headers       []string
	line          int
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithComma sets the field delimiter.
func WithComma(c rune) Option {
	return func(r *Reader) {
		r.reader.Comma = c
	}
}

// WithSkipMalformed drops rows that fail to parse instead of returning an error.
func WithSkipMalformed(skip bool) Option {
	return func(r *Reader) {
		r.skipMalformed = skip
	}
}

// NewReader creates a new CSV reader.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		file:      file,
		reader:    csv.NewReader(file),
		hasHeader: true,
	}
	r.reader.ReuseRecord = true

	for _, opt := range opts {
		opt(r)
	}

	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("read header: %w", err)
		}
		r.headers = append([]string(nil), headers...)
		r.line++
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// FeatureNames returns the header columns, nil without a header row.
func (r *Reader) FeatureNames() []string {
	return r.headers
}

// Read returns all data as a 2D float slice.
func (r *Reader) Read() ([][]float64, error) {
	var data [][]float64

	for {
		row, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if row != nil {
			data = append(data, row)
		}
	}

	return data, nil
}

// Stream returns a channel of rows for real-time processing.
func (r *Reader) Stream(ctx context.Context) (<-chan []float64, error) {
	out := make(chan []float64, 100)

	go func() {
		defer close(out)
		for {
			row, err := r.next()
			if err != nil {
				return
			}
			if row == nil {
				continue
			}

			select {
			case out <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// next returns the next parsed row, nil for a skipped row, or io.EOF.
func (r *Reader) next() ([]float64, error) {
	record, err := r.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.line++
	if err != nil {
		if r.skipMalformed {
			return nil, nil
		}
		return nil, fmt.Errorf("line %d: %w", r.line, err)
	}

	row, err := parseRow(record)
	if err != nil {
		if r.skipMalformed {
			return nil, nil
		}
		return nil, fmt.Errorf("line %d: %w", r.line, err)
	}
	return row, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// parseRow converts string slice to float slice.
func parseRow(record []string) ([]float64, error) {
	if len(record) == 0 {
		return nil, errors.New("empty row")
	}

	row := make([]float64, len(record))
	for i, val := range record {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		row[i] = f
	}
	return row, nil
}
