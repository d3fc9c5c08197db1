package classifier

import (
	"FlowGuard/internal/config"
	"FlowGuard/internal/factory"
	"FlowGuard/internal/model"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterClassifier("onnx", func(cfg *config.Config, logger *zap.Logger) (model.Classifier, error) {
		c, err := NewONNXClassifier(cfg.Classifier.ONNX, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	factory.RegisterClassifier("grpc", func(cfg *config.Config, logger *zap.Logger) (model.Classifier, error) {
		c, err := NewGRPCClassifier(cfg.Classifier.GRPC.Addr, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}
