package notify

import (
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/model"
)

// LogChannel writes every alert to the structured log. Used as the
// always-available delivery channel.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel creates a log-backed notification channel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger.Named("alert-log")}
}

// Send implements the alert engine's NotificationChannel.
func (c *LogChannel) Send(alert *model.Alert) error {
	c.logger.Info("Alert notification",
		zap.String("id", alert.ID),
		zap.String("kind", alert.Kind),
		zap.String("severity", string(alert.Severity)),
		zap.String("title", alert.Title),
		zap.Float64("current_value", alert.CurrentValue),
		zap.Float64("threshold_value", alert.ThresholdValue))
	return nil
}

// PrefsFunc resolves the notification preferences for an alert, keyed
// by its threshold id. Returning false falls back to a plain toast.
type PrefsFunc func(thresholdID string) (model.NotificationPrefs, bool)

// QueueChannel renders alerts into user-facing notifications and shows
// them on a NotificationQueue.
type QueueChannel struct {
	queue *NotificationQueue
	prefs PrefsFunc
}

// NewQueueChannel creates a queue-backed notification channel. prefs
// may be nil.
func NewQueueChannel(queue *NotificationQueue, prefs PrefsFunc) *QueueChannel {
	return &QueueChannel{queue: queue, prefs: prefs}
}

// Send implements the alert engine's NotificationChannel.
func (c *QueueChannel) Send(alert *model.Alert) error {
	n := &model.Notification{
		Severity: alert.Severity,
		Title:    alert.Title,
		Message:  alert.Message,
	}
	if c.prefs != nil {
		if prefs, ok := c.prefs(alert.ThresholdID); ok {
			if !prefs.Toast && !prefs.Center {
				return nil
			}
			n.Persistent = prefs.Persistent
		}
	}
	c.queue.Show(n)
	return nil
}
