package notification

import (
	"FlowGuard/internal/config"
	"FlowGuard/internal/factory"
	"FlowGuard/internal/model"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterSink("nats", func(cfg *config.Config, logger *zap.Logger) (model.AlertSink, error) {
		if !cfg.Probe.PublishAlerts {
			return nil, nil
		}
		p, err := NewAlertPublisher(cfg.Probe.NATSURL, cfg.Probe.AlertSubject, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
