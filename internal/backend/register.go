package backend

import (
	"context"

	"FlowGuard/internal/config"
	"FlowGuard/internal/factory"
	"FlowGuard/internal/model"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterSink("backend", func(cfg *config.Config, logger *zap.Logger) (model.AlertSink, error) {
		if !cfg.Backend.Enabled {
			return nil, nil
		}
		client := NewClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout.Std(), logger)
		if err := client.Health(context.Background()); err != nil {
			// Alerts are still attempted and counted as sink failures while the backend is down.
			logger.Warn("Backend health check failed", zap.String("url", cfg.Backend.URL), zap.Error(err))
		} else {
			logger.Info("Backend connected", zap.String("url", cfg.Backend.URL))
		}
		return client, nil
	})
}
