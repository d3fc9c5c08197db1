package model

import "context"

// BenignLabel is the class label the model emits for normal traffic.
const BenignLabel = "BENIGN"

// Prediction is the classifier verdict for one flow.
type Prediction struct {
	Label         string
	Confidence    float64
	Probabilities map[string]float64
	// ProcessingTime is the wall time spent in the classifier, in milliseconds.
	ProcessingTime float64
}

// IsMalicious reports whether the predicted label is anything other than benign traffic.
func (p *Prediction) IsMalicious() bool {
	return p.Label != BenignLabel
}

// Classifier predicts the traffic class of a feature vector. The vector is laid out in the
// fixed training-time feature order.
type Classifier interface {
	Classify(ctx context.Context, vector []float64) (*Prediction, error)
	Close() error
}
