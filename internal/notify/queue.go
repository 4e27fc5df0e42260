package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/clock"
	"github.com/t77yq/dashmon/internal/metrics"
	"github.com/t77yq/dashmon/internal/model"
)

// Severity-based duration defaults applied when a notification carries
// no explicit duration and is not persistent.
const (
	errorDuration   = 6 * time.Second
	defaultDuration = 4 * time.Second
)

type visibleEntry struct {
	notification *model.Notification
	timer        clock.Timer
}

// NotificationQueue bounds how many notifications are rendered at once.
// Excess items wait in a FIFO backlog; a backlog item's expiry timer
// starts only once it is promoted to the visible set.
type NotificationQueue struct {
	logger     *zap.Logger
	clk        clock.Clock
	mcs        *metrics.Metrics
	maxVisible int

	mu          sync.Mutex
	visible     []*visibleEntry
	backlog     []*model.Notification
	subscribers map[int]func([]*model.Notification)
	nextSubID   int
}

// NewQueue creates a notification queue. maxVisible defaults to 3.
func NewQueue(logger *zap.Logger, clk clock.Clock, mcs *metrics.Metrics, maxVisible int) *NotificationQueue {
	if maxVisible <= 0 {
		maxVisible = 3
	}
	return &NotificationQueue{
		logger:      logger.Named("notification-queue"),
		clk:         clk,
		mcs:         mcs,
		maxVisible:  maxVisible,
		subscribers: make(map[int]func([]*model.Notification)),
	}
}

// Show admits the notification to the visible set or, when full,
// appends it to the backlog. Returns the (possibly assigned) id.
func (q *NotificationQueue) Show(n *model.Notification) string {
	q.mu.Lock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = q.clk.Now()
	if n.Persistent {
		n.Duration = 0
	} else if n.Duration == 0 {
		if n.Severity == model.AlertSeverityError {
			n.Duration = errorDuration
		} else {
			n.Duration = defaultDuration
		}
	}

	if len(q.visible) < q.maxVisible {
		q.admitLocked(n)
		if q.mcs != nil {
			q.mcs.NotificationsShown.Inc()
		}
	} else {
		q.backlog = append(q.backlog, n)
		if q.mcs != nil {
			q.mcs.NotificationsQueued.Inc()
		}
		q.logger.Debug("Notification queued",
			zap.String("id", n.ID),
			zap.Int("backlog", len(q.backlog)))
	}

	snapshot := q.visibleLocked()
	subs := q.subscribersLocked()
	q.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return n.ID
}

// admitLocked places the notification in the visible set and starts
// its expiry timer. Expiry is measured from admission, not enqueue.
func (q *NotificationQueue) admitLocked(n *model.Notification) {
	entry := &visibleEntry{notification: n}
	if n.Duration > 0 {
		id := n.ID
		entry.timer = q.clk.AfterFunc(n.Duration, func() {
			q.Hide(id)
		})
	}
	q.visible = append(q.visible, entry)
}

// Hide removes the notification from the visible set and promotes the
// oldest backlog entry into the freed slot. Unknown ids are a no-op so
// a stale expiry timer cannot resurrect removed state.
func (q *NotificationQueue) Hide(id string) {
	q.mu.Lock()

	idx := -1
	for i, entry := range q.visible {
		if entry.notification.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return
	}

	if t := q.visible[idx].timer; t != nil {
		t.Stop()
	}
	q.visible = append(q.visible[:idx], q.visible[idx+1:]...)

	if len(q.backlog) > 0 {
		next := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.admitLocked(next)
		if q.mcs != nil {
			q.mcs.NotificationsShown.Inc()
		}
	}

	snapshot := q.visibleLocked()
	subs := q.subscribersLocked()
	q.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// InvokeAction runs the handler of the named action. The notification
// is hidden afterwards unless it is persistent. Returns false when the
// notification or action does not exist.
func (q *NotificationQueue) InvokeAction(id, actionID string) bool {
	q.mu.Lock()
	var target *model.Notification
	for _, entry := range q.visible {
		if entry.notification.ID == id {
			target = entry.notification
			break
		}
	}
	if target == nil {
		q.mu.Unlock()
		return false
	}
	var handler func()
	for _, action := range target.Actions {
		if action.ID == actionID {
			handler = action.Handler
			break
		}
	}
	persistent := target.Persistent
	q.mu.Unlock()

	if handler == nil {
		return false
	}
	handler()
	if !persistent {
		q.Hide(id)
	}
	return true
}

// ClearAll empties the visible set and the backlog. Already-scheduled
// expiry timers are left to fire; they no-op on the missing ids.
func (q *NotificationQueue) ClearAll() {
	q.mu.Lock()
	q.visible = nil
	q.backlog = nil
	snapshot := q.visibleLocked()
	subs := q.subscribersLocked()
	q.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Visible returns a snapshot of the currently rendered notifications.
func (q *NotificationQueue) Visible() []*model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.visibleLocked()
}

// QueuedCount returns the backlog length.
func (q *NotificationQueue) QueuedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Subscribe registers a callback invoked with the visible snapshot on
// every change. The returned function removes the subscription.
func (q *NotificationQueue) Subscribe(fn func([]*model.Notification)) func() {
	q.mu.Lock()
	id := q.nextSubID
	q.nextSubID++
	q.subscribers[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.subscribers, id)
		q.mu.Unlock()
	}
}

func (q *NotificationQueue) visibleLocked() []*model.Notification {
	out := make([]*model.Notification, len(q.visible))
	for i, entry := range q.visible {
		n := *entry.notification
		out[i] = &n
	}
	return out
}

func (q *NotificationQueue) subscribersLocked() []func([]*model.Notification) {
	out := make([]func([]*model.Notification), 0, len(q.subscribers))
	for _, fn := range q.subscribers {
		out = append(out, fn)
	}
	return out
}
