package probe

import (
	"fmt"

	"FlowGuard/internal/config"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// FrameHandler processes one received frame. It is called from the NATS delivery goroutine.
type FrameHandler func(f Frame)

// Subscriber receives raw frames published by a probe.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	logger  *zap.Logger
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig, logger *zap.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("flowguard-ids"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	logger.Info("Connected to NATS server", zap.String("url", cfg.NATSURL))
	return &Subscriber{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Start subscribes to the frame subject. Malformed messages are logged and dropped.
func (s *Subscriber) Start(handler FrameHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		f, err := decodeFrame(msg)
		if err != nil {
			s.logger.Debug("Dropping frame", zap.Error(err))
			return
		}
		handler(f)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("Subscribed, waiting for frames", zap.String("subject", s.subject))
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn("Failed to unsubscribe", zap.Error(err))
		}
	}
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("NATS connection closed")
	}
}
