package classifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FlowGuard/internal/config"
	"FlowGuard/internal/engine/features"
	"FlowGuard/internal/model"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ONNXClassifier runs a multi-class ONNX model with a float32 [1, 78] input and a
// float32 [1, n] class probability output.
type ONNXClassifier struct {
	mu      sync.Mutex
	labels  []string
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	logger  *zap.Logger
}

// NewONNXClassifier loads the runtime library, the model and its labels.
func NewONNXClassifier(cfg config.ONNXConfig, logger *zap.Logger) (*ONNXClassifier, error) {
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, features.NumFeatures))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to load model %s: %w", cfg.ModelPath, err)
	}

	logger.Info("ONNX classifier loaded",
		zap.String("model", cfg.ModelPath),
		zap.Int("classes", len(labels)),
	)
	return &ONNXClassifier{
		labels:  labels,
		session: session,
		input:   input,
		output:  output,
		logger:  logger,
	}, nil
}

// Classify implements model.Classifier. Inference itself cannot be interrupted; ctx is
// checked before the model runs.
func (c *ONNXClassifier) Classify(ctx context.Context, vector []float64) (*model.Prediction, error) {
	if len(vector) != features.NumFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVectorLength, len(vector), features.NumFeatures)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	in := c.input.GetData()
	for i, v := range sanitize(vector) {
		in[i] = float32(v)
	}
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx inference failed: %w", err)
	}

	scores := append([]float32(nil), c.output.GetData()...)
	pred, err := predictionFromScores(c.labels, scores)
	if err != nil {
		return nil, err
	}
	pred.ProcessingTime = float64(time.Since(start).Microseconds()) / 1000
	return pred, nil
}

// Close releases the session, its tensors and the runtime environment.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, destroy := range []func() error{c.session.Destroy, c.input.Destroy, c.output.Destroy, ort.DestroyEnvironment} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
