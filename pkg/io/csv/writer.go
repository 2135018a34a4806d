package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	gio "github.com/hed1ad/goguardgan/pkg/io"
)

var _ gio.Writer = (*Writer)(nil)

// Writer writes detection results as CSV rows of
// index,score,is_anomaly followed by the sample features.
type Writer struct {
	closer      io.Closer
	writer      *csv.Writer
	featureCols []string
	wroteHeader bool
}

// NewWriter writes results to w. Feature columns are named by features;
// pass nil to omit the header.
func NewWriter(w io.Writer, features []string) *Writer {
	return &Writer{
		writer:      csv.NewWriter(w),
		featureCols: features,
		wroteHeader: features == nil,
	}
}

// CreateWriter creates filename and writes results into it.
func CreateWriter(filename string, features []string) (*Writer, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := NewWriter(f, features)
	w.closer = f
	return w, nil
}

// Write outputs a single result.
func (w *Writer) Write(result gio.Result) error {
	if !w.wroteHeader {
		header := append([]string{"index", "score", "is_anomaly"}, w.featureCols...)
		if err := w.writer.Write(header); err != nil {
			return err
		}
		w.wroteHeader = true
	}

	record := make([]string, 0, 3+len(result.Features))
	record = append(record,
		strconv.Itoa(result.Index),
		strconv.FormatFloat(result.Score, 'g', -1, 64),
		strconv.FormatBool(result.IsAnomaly),
	)
	for _, f := range result.Features {
		record = append(record, strconv.FormatFloat(f, 'g', -1, 64))
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("write result %d: %w", result.Index, err)
	}
	return nil
}

// WriteAll outputs multiple results.
func (w *Writer) WriteAll(results []gio.Result) error {
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes buffered rows and closes the file if the writer owns it.
func (w *Writer) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
