package output

import (
	"FlowGuard/internal/config"
	"FlowGuard/internal/factory"
	"FlowGuard/internal/model"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterWriter("json", func(cfg *config.Config, logger *zap.Logger) (model.Writer, error) {
		if cfg.Output.JSONPath == "" {
			return nil, nil
		}
		w, err := NewJSONAlertWriter(cfg.Output.JSONPath, logger)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	factory.RegisterWriter("summary_csv", func(cfg *config.Config, _ *zap.Logger) (model.Writer, error) {
		if cfg.Output.CSVPath == "" {
			return nil, nil
		}
		w, err := NewSummaryCSVWriter(cfg.Output.CSVPath)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	factory.RegisterWriter("features_csv", func(cfg *config.Config, _ *zap.Logger) (model.Writer, error) {
		if cfg.Output.FeaturesPath == "" {
			return nil, nil
		}
		w, err := NewFeatureCSVWriter(cfg.Output.FeaturesPath)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	factory.RegisterWriter("clickhouse", func(cfg *config.Config, logger *zap.Logger) (model.Writer, error) {
		if !cfg.Output.ClickHouse.Enabled {
			return nil, nil
		}
		w, err := NewClickHouseWriter(cfg.Output.ClickHouse, logger)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}
