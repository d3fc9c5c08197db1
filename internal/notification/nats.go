// Package notification delivers alerts and digests: NATS for machine consumers, e-mail for
// operators.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"FlowGuard/internal/model"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Headers set on every alert message, so consumers can route without decoding the body.
const (
	HeaderAttack   = "Fg-Attack"
	HeaderSeverity = "Fg-Severity"
	HeaderAction   = "Fg-Action"
)

// AlertPublisher implements model.AlertSink by publishing JSON alerts to a NATS subject.
type AlertPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewAlertPublisher connects to the NATS server at url.
func NewAlertPublisher(url, subject string, logger *zap.Logger) (*AlertPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("flowguard-alerts"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	logger.Info("Connected to NATS for alert publishing", zap.String("url", url), zap.String("subject", subject))
	return &AlertPublisher{nc: nc, subject: subject, logger: logger}, nil
}

// Name implements model.AlertSink.
func (p *AlertPublisher) Name() string {
	return "nats"
}

// Send publishes the alert and waits, bounded by ctx, until the server has acknowledged it.
func (p *AlertPublisher) Send(ctx context.Context, alert *model.Alert) error {
	msg, err := alertMsg(p.subject, alert)
	if err != nil {
		return err
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", alert.FlowID, err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush alert %s: %w", alert.FlowID, err)
	}
	return nil
}

// Close drains the connection.
func (p *AlertPublisher) Close() error {
	return p.nc.Drain()
}

func alertMsg(subject string, alert *model.Alert) (*nats.Msg, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderAttack, alert.AttackType)
	msg.Header.Set(HeaderSeverity, strconv.FormatFloat(alert.SeverityScore, 'f', 1, 64))
	msg.Header.Set(HeaderAction, alert.RecommendedAction)
	return msg, nil
}
