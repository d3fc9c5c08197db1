// Package classifier provides model.Classifier implementations backed by a local ONNX model
// or a remote gRPC classification service.
package classifier

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"FlowGuard/internal/model"
)

// ErrVectorLength is returned when a vector does not have the expected number of features.
var ErrVectorLength = errors.New("unexpected feature vector length")

// sanitize replaces non-finite values with zero.
func sanitize(vector []float64) []float64 {
	out := make([]float64, len(vector))
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
	}
	return out
}

// predictionFromScores picks the most probable label.
func predictionFromScores(labels []string, scores []float32) (*model.Prediction, error) {
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("model returned %d scores for %d labels", len(scores), len(labels))
	}
	if len(labels) == 0 {
		return nil, errors.New("model has no labels")
	}
	pred := &model.Prediction{Probabilities: make(map[string]float64, len(labels))}
	best := -1
	for i, s := range scores {
		p := float64(s)
		pred.Probabilities[labels[i]] = p
		if best < 0 || p > float64(scores[best]) {
			best = i
		}
	}
	pred.Label = labels[best]
	pred.Confidence = float64(scores[best])
	return pred, nil
}

// LoadLabels reads one class label per line, skipping blank lines.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if l := strings.TrimSpace(scanner.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}
