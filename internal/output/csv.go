// Package output persists finalized flows locally (JSON, CSV) and to ClickHouse.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"FlowGuard/internal/alerting"
	"FlowGuard/internal/engine/features"
	"FlowGuard/internal/model"
)

// csvFile is an append-only CSV file that writes its header when it starts out empty.
type csvFile struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	path string
}

func openCSV(path string, header []string) (*csvFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	c := &csvFile{f: f, w: csv.NewWriter(f), path: path}
	if info.Size() == 0 {
		if err := c.w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
		c.w.Flush()
		if err := c.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	return c, nil
}

func (c *csvFile) writeRows(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to append to %s: %w", c.path, err)
	}
	return nil
}

func (c *csvFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	werr := c.w.Error()
	if err := c.f.Close(); err != nil {
		return err
	}
	return werr
}

// FeatureCSVWriter appends the feature vector of every classified flow, one row per flow, in
// the training-time column order.
type FeatureCSVWriter struct {
	*csvFile
}

// NewFeatureCSVWriter opens (or creates) the feature CSV at path.
func NewFeatureCSVWriter(path string) (*FeatureCSVWriter, error) {
	c, err := openCSV(path, features.Header())
	if err != nil {
		return nil, err
	}
	return &FeatureCSVWriter{c}, nil
}

// Write implements model.Writer.
func (w *FeatureCSVWriter) Write(results []model.FlowResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := make([]string, len(r.Features))
		for i, v := range r.Features {
			row[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		rows = append(rows, row)
	}
	return w.writeRows(rows)
}

// SummaryCSVWriter appends one summary row per alerted flow.
type SummaryCSVWriter struct {
	*csvFile
}

// NewSummaryCSVWriter opens (or creates) the summary CSV at path.
func NewSummaryCSVWriter(path string) (*SummaryCSVWriter, error) {
	c, err := openCSV(path, alerting.SummaryHeader)
	if err != nil {
		return nil, err
	}
	return &SummaryCSVWriter{c}, nil
}

// Write implements model.Writer. Results without an alert are skipped.
func (w *SummaryCSVWriter) Write(results []model.FlowResult) error {
	var rows [][]string
	for _, r := range results {
		if r.Alert != nil {
			rows = append(rows, alerting.SummaryRow(r.Alert))
		}
	}
	return w.writeRows(rows)
}
