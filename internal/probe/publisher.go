package probe

import (
	"fmt"

	"FlowGuard/internal/config"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher publishes raw frames to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig, logger *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("flowguard-probe"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	logger.Info("Connected to NATS server", zap.String("url", cfg.NATSURL), zap.String("subject", cfg.Subject))
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends one frame with its capture metadata in the message headers.
func (p *Publisher) Publish(f Frame) error {
	return p.nc.PublishMsg(frameMsg(p.subject, f))
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("Failed to drain NATS connection", zap.Error(err))
		return
	}
	p.logger.Info("NATS connection drained and closed")
}
