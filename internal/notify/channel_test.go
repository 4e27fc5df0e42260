package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/clock"
	"github.com/t77yq/dashmon/internal/model"
	"github.com/t77yq/dashmon/internal/testutil"
)

func sampleAlert() *model.Alert {
	return &model.Alert{
		ID:             "alert-1",
		Kind:           model.ResourceInventory,
		Severity:       model.AlertSeverityWarning,
		Status:         model.AlertStatusActive,
		Title:          "Low Stock",
		Message:        "Alert triggered for threshold: Low Stock",
		CurrentValue:   1500,
		ThresholdValue: 1000,
		TriggeredAt:    time.Now(),
	}
}

func TestLogChannel_Send(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	ch := NewLogChannel(logger)
	require.NoError(t, ch.Send(sampleAlert()))
}

func TestQueueChannel_Send(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	queue := NewQueue(logger, clk, nil, 3)

	ch := NewQueueChannel(queue, nil)
	require.NoError(t, ch.Send(sampleAlert()))

	visible := queue.Visible()
	require.Len(t, visible, 1)
	require.Equal(t, "Low Stock", visible[0].Title)
	require.Equal(t, model.AlertSeverityWarning, visible[0].Severity)
}

func TestQueueChannel_Prefs(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	queue := NewQueue(logger, clk, nil, 3)

	prefs := map[string]model.NotificationPrefs{
		"t-silent": {Toast: false, Center: false},
		"t-sticky": {Toast: true, Persistent: true},
	}
	ch := NewQueueChannel(queue, func(thresholdID string) (model.NotificationPrefs, bool) {
		p, ok := prefs[thresholdID]
		return p, ok
	})

	silent := sampleAlert()
	silent.ThresholdID = "t-silent"
	require.NoError(t, ch.Send(silent))
	require.Empty(t, queue.Visible())

	sticky := sampleAlert()
	sticky.ThresholdID = "t-sticky"
	require.NoError(t, ch.Send(sticky))
	visible := queue.Visible()
	require.Len(t, visible, 1)
	require.True(t, visible[0].Persistent)
}

func TestNATSChannel_Send(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	_, nc, cleanup := testutil.StartNATS(t)
	defer cleanup()

	received := make(chan *nats.Msg, 1)
	sub, err := nc.Subscribe("alert."+model.ResourceInventory, func(msg *nats.Msg) {
		received <- msg
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ch := NewNATSChannel(logger, nc)
	require.NoError(t, ch.Send(sampleAlert()))

	select {
	case msg := <-received:
		var alert model.Alert
		require.NoError(t, json.Unmarshal(msg.Data, &alert))
		require.Equal(t, "alert-1", alert.ID)
		require.Equal(t, model.AlertSeverityWarning, alert.Severity)
		require.Equal(t, 1500.0, alert.CurrentValue)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for alert")
	}
}
