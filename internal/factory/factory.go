// Package factory builds the pluggable parts of the engine from configuration. Implementations
// register themselves from init functions; binaries select them with blank imports.
package factory

import (
	"fmt"
	"sort"

	"FlowGuard/internal/config"
	"FlowGuard/internal/model"

	"go.uber.org/zap"
)

// ClassifierFactory creates a classifier from the configuration.
type ClassifierFactory func(cfg *config.Config, logger *zap.Logger) (model.Classifier, error)

// WriterFactory creates a writer. It returns a nil writer when the writer is disabled.
type WriterFactory func(cfg *config.Config, logger *zap.Logger) (model.Writer, error)

// SinkFactory creates an alert sink. It returns a nil sink when the sink is disabled.
type SinkFactory func(cfg *config.Config, logger *zap.Logger) (model.AlertSink, error)

var (
	classifiers = make(map[string]ClassifierFactory)
	writers     = make(map[string]WriterFactory)
	sinks       = make(map[string]SinkFactory)
)

// RegisterClassifier registers a classifier type under name.
func RegisterClassifier(name string, factory ClassifierFactory) {
	if _, exists := classifiers[name]; exists {
		panic(fmt.Sprintf("classifier type '%s' already registered", name))
	}
	classifiers[name] = factory
}

// RegisterWriter registers a writer under name.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := writers[name]; exists {
		panic(fmt.Sprintf("writer '%s' already registered", name))
	}
	writers[name] = factory
}

// RegisterSink registers an alert sink under name.
func RegisterSink(name string, factory SinkFactory) {
	if _, exists := sinks[name]; exists {
		panic(fmt.Sprintf("sink '%s' already registered", name))
	}
	sinks[name] = factory
}

// NewClassifier creates the classifier selected by cfg.Classifier.Type.
func NewClassifier(cfg *config.Config, logger *zap.Logger) (model.Classifier, error) {
	factory, ok := classifiers[cfg.Classifier.Type]
	if !ok {
		return nil, fmt.Errorf("unknown classifier type: '%s'", cfg.Classifier.Type)
	}
	c, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating classifier '%s': %w", cfg.Classifier.Type, err)
	}
	return c, nil
}

// CreateWriters creates every enabled writer. Any failure is returned after closing the writers
// created so far.
func CreateWriters(cfg *config.Config, logger *zap.Logger) ([]model.Writer, error) {
	var created []model.Writer
	for _, name := range sortedKeys(writers) {
		w, err := writers[name](cfg, logger)
		if err != nil {
			for _, c := range created {
				c.Close()
			}
			return nil, fmt.Errorf("error creating writer '%s': %w", name, err)
		}
		if w == nil {
			continue
		}
		logger.Info("Writer enabled", zap.String("writer", name))
		created = append(created, w)
	}
	return created, nil
}

// CreateSinks creates every enabled alert sink. Sinks are best effort, so a sink that cannot be
// created is logged and skipped.
func CreateSinks(cfg *config.Config, logger *zap.Logger) []model.AlertSink {
	var created []model.AlertSink
	for _, name := range sortedKeys(sinks) {
		s, err := sinks[name](cfg, logger)
		if err != nil {
			logger.Warn("Alert sink unavailable, skipping", zap.String("sink", name), zap.Error(err))
			continue
		}
		if s == nil {
			continue
		}
		logger.Info("Alert sink enabled", zap.String("sink", name))
		created = append(created, s)
	}
	return created
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
