package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/clock"
	"github.com/t77yq/dashmon/internal/model"
)

func newTestQueue(t *testing.T, maxVisible int) (*NotificationQueue, *clock.Fake) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewQueue(logger, clk, nil, maxVisible), clk
}

func info(title string) *model.Notification {
	return &model.Notification{Severity: model.AlertSeverityInfo, Title: title}
}

func TestQueue_Bound(t *testing.T) {
	q, _ := newTestQueue(t, 3)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, q.Show(info(fmt.Sprintf("n%d", i))))
	}

	visible := q.Visible()
	require.Len(t, visible, 3)
	require.Equal(t, 2, q.QueuedCount())

	// Hiding a visible item promotes the oldest backlog entry, FIFO.
	q.Hide(ids[0])
	visible = q.Visible()
	require.Len(t, visible, 3)
	require.Equal(t, 1, q.QueuedCount())
	require.Equal(t, ids[3], visible[2].ID)
}

func TestQueue_IDAssigned(t *testing.T) {
	q, _ := newTestQueue(t, 3)

	id := q.Show(info("auto"))
	require.NotEmpty(t, id)

	n := &model.Notification{ID: "custom", Severity: model.AlertSeverityInfo}
	require.Equal(t, "custom", q.Show(n))
}

func TestQueue_DurationDefaults(t *testing.T) {
	q, _ := newTestQueue(t, 5)

	q.Show(&model.Notification{Severity: model.AlertSeverityError, Title: "err"})
	q.Show(&model.Notification{Severity: model.AlertSeverityInfo, Title: "info"})
	q.Show(&model.Notification{Severity: model.AlertSeverityCritical, Title: "sticky", Persistent: true})
	q.Show(&model.Notification{Severity: model.AlertSeverityInfo, Title: "custom", Duration: time.Second})

	visible := q.Visible()
	require.Equal(t, 6*time.Second, visible[0].Duration)
	require.Equal(t, 4*time.Second, visible[1].Duration)
	require.Equal(t, time.Duration(0), visible[2].Duration)
	require.Equal(t, time.Second, visible[3].Duration)
}

func TestQueue_AutoExpiry(t *testing.T) {
	q, clk := newTestQueue(t, 3)

	for i := 0; i < 4; i++ {
		q.Show(info(fmt.Sprintf("n%d", i)))
	}
	require.Len(t, q.Visible(), 3)
	require.Equal(t, 1, q.QueuedCount())

	// The first three expire at t=4s; the backlog item is promoted then
	// and its own timer starts from admission, so it lives until t=8s.
	clk.Advance(4 * time.Second)
	visible := q.Visible()
	require.Len(t, visible, 1)
	require.Equal(t, "n3", visible[0].Title)
	require.Equal(t, 0, q.QueuedCount())

	clk.Advance(4 * time.Second)
	require.Empty(t, q.Visible())
}

func TestQueue_PersistentNeverExpires(t *testing.T) {
	q, clk := newTestQueue(t, 3)

	q.Show(&model.Notification{Severity: model.AlertSeverityWarning, Title: "sticky", Persistent: true})
	clk.Advance(time.Hour)
	require.Len(t, q.Visible(), 1)
}

func TestQueue_HideUnknown(t *testing.T) {
	q, _ := newTestQueue(t, 3)
	q.Show(info("n"))
	q.Hide("missing")
	require.Len(t, q.Visible(), 1)
}

func TestQueue_ClearAll(t *testing.T) {
	q, clk := newTestQueue(t, 2)

	for i := 0; i < 4; i++ {
		q.Show(info(fmt.Sprintf("n%d", i)))
	}
	q.ClearAll()
	require.Empty(t, q.Visible())
	require.Equal(t, 0, q.QueuedCount())

	// Scheduled expiry timers fire on missing ids and stay no-ops.
	clk.Advance(10 * time.Second)
	require.Empty(t, q.Visible())
}

func TestQueue_InvokeAction(t *testing.T) {
	q, _ := newTestQueue(t, 3)

	invoked := 0
	n := &model.Notification{
		Severity: model.AlertSeverityInfo,
		Title:    "order failed",
		Actions: []model.NotificationAction{
			{ID: "retry", Label: "Retry", Handler: func() { invoked++ }},
		},
	}
	id := q.Show(n)

	require.True(t, q.InvokeAction(id, "retry"))
	require.Equal(t, 1, invoked)
	// Non-persistent notifications hide after an action fires.
	require.Empty(t, q.Visible())

	require.False(t, q.InvokeAction(id, "retry"))
	require.False(t, q.InvokeAction("missing", "retry"))
}

func TestQueue_InvokeAction_PersistentStays(t *testing.T) {
	q, _ := newTestQueue(t, 3)

	invoked := 0
	n := &model.Notification{
		Severity:   model.AlertSeverityCritical,
		Title:      "stock out",
		Persistent: true,
		Actions: []model.NotificationAction{
			{ID: "view", Label: "View", Handler: func() { invoked++ }},
		},
	}
	id := q.Show(n)

	require.True(t, q.InvokeAction(id, "view"))
	require.Equal(t, 1, invoked)
	require.Len(t, q.Visible(), 1)

	require.False(t, q.InvokeAction(id, "unknown"))
}

func TestQueue_Subscribe(t *testing.T) {
	q, _ := newTestQueue(t, 2)

	var calls [][]*model.Notification
	unsubscribe := q.Subscribe(func(visible []*model.Notification) {
		calls = append(calls, visible)
	})

	id := q.Show(info("n0"))
	q.Hide(id)
	require.Len(t, calls, 2)
	require.Len(t, calls[0], 1)
	require.Empty(t, calls[1])

	unsubscribe()
	q.Show(info("n1"))
	require.Len(t, calls, 2)
}
