package notify

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/model"
)

// NATSChannel publishes alerts to a NATS subject per alert kind so
// external consumers (other dashboard instances, audit sinks) can
// subscribe to the event stream.
type NATSChannel struct {
	logger *zap.Logger
	nc     *nats.Conn
}

// NewNATSChannel creates a NATS-backed notification channel.
func NewNATSChannel(logger *zap.Logger, nc *nats.Conn) *NATSChannel {
	return &NATSChannel{
		logger: logger.Named("nats-channel"),
		nc:     nc,
	}
}

// Send implements the alert engine's NotificationChannel by publishing
// the alert as JSON to alert.<kind>.
func (c *NATSChannel) Send(alert *model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	subject := "alert." + alert.Kind
	if err := c.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	c.logger.Debug("Published alert",
		zap.String("subject", subject),
		zap.String("id", alert.ID))
	return nil
}
