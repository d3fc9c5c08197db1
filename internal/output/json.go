package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"FlowGuard/internal/model"

	"go.uber.org/zap"
)

// JSONAlertWriter keeps every alert in a single JSON array file. Each Write appends to the
// array and replaces the file atomically.
type JSONAlertWriter struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewJSONAlertWriter ensures the directory of path exists and returns a writer for it.
func NewJSONAlertWriter(path string, logger *zap.Logger) (*JSONAlertWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &JSONAlertWriter{path: path, logger: logger}, nil
}

// Write implements model.Writer. Results without an alert are skipped.
func (w *JSONAlertWriter) Write(results []model.FlowResult) error {
	var fresh []*model.Alert
	for _, r := range results {
		if r.Alert != nil {
			fresh = append(fresh, r.Alert)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	existing, err := w.load()
	if err != nil {
		return err
	}
	existing = append(existing, fresh...)

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", w.path, err)
	}
	return nil
}

// load reads the current array. A missing file starts a new array. A file that does not hold a
// JSON array is moved to path+".corrupt" and a new array is started.
func (w *JSONAlertWriter) load() ([]*model.Alert, error) {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.path, err)
	}
	var alerts []*model.Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		aside := w.path + ".corrupt"
		if rerr := os.Rename(w.path, aside); rerr != nil {
			return nil, fmt.Errorf("failed to move unparseable %s aside: %w", w.path, rerr)
		}
		w.logger.Error("Alert file is not a JSON array, moved aside",
			zap.String("path", w.path), zap.String("moved_to", aside), zap.Error(err))
		return nil, nil
	}
	return alerts, nil
}

// Close implements model.Writer.
func (w *JSONAlertWriter) Close() error {
	return nil
}
