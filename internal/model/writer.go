package model

import "time"

// FlowResult is a finalized, classified flow as handed to persistent stores.
type FlowResult struct {
	FlowID    string
	FiveTuple FiveTuple
	StartTime time.Time
	EndTime   time.Time
	// Features holds the feature vector in the fixed training-time order.
	Features   []float64
	Prediction *Prediction
	// Alert is set when the flow was reported as malicious.
	Alert *Alert
}

// Writer defines a generic interface for writing finalized flows to a persistent store.
type Writer interface {
	// Write persists one flush sweep's worth of results.
	Write(results []FlowResult) error

	// Close flushes buffered data and releases the store.
	Close() error
}
