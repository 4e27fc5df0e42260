package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/model"
)

// Acknowledge moves an active alert to acknowledged. Returns false when
// the alert does not exist or is not active.
func (e *AlertEngine) Acknowledge(id, actor string) bool {
	return e.transition(id, func(a *model.Alert, now time.Time) bool {
		if a.Status != model.AlertStatusActive {
			return false
		}
		a.Status = model.AlertStatusAcknowledged
		if a.AcknowledgedAt == nil {
			t := now
			a.AcknowledgedAt = &t
			a.AckBy = actor
		}
		return true
	})
}

// Resolve moves an active or acknowledged alert to resolved.
func (e *AlertEngine) Resolve(id, actor string) bool {
	return e.transition(id, func(a *model.Alert, now time.Time) bool {
		if a.Status != model.AlertStatusActive && a.Status != model.AlertStatusAcknowledged {
			return false
		}
		a.Status = model.AlertStatusResolved
		if a.ResolvedAt == nil {
			t := now
			a.ResolvedAt = &t
			a.ResolvedBy = actor
		}
		return true
	})
}

// Dismiss moves an alert to dismissed. Allowed from every state except
// dismissed itself.
func (e *AlertEngine) Dismiss(id string) bool {
	return e.transition(id, func(a *model.Alert, now time.Time) bool {
		if a.Status == model.AlertStatusDismissed {
			return false
		}
		a.Status = model.AlertStatusDismissed
		if a.DismissedAt == nil {
			t := now
			a.DismissedAt = &t
		}
		return true
	})
}

func (e *AlertEngine) transition(id string, apply func(*model.Alert, time.Time) bool) bool {
	e.mu.Lock()
	var target *model.Alert
	for _, a := range e.alerts {
		if a.ID == id {
			target = a
			break
		}
	}
	if target == nil || !apply(target, e.clk.Now()) {
		e.mu.Unlock()
		return false
	}
	snapshot := e.snapshotLocked()
	subs := e.subscribersLocked()
	e.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return true
}

// Alerts returns an immutable snapshot of the current alert collection,
// oldest first.
func (e *AlertEngine) Alerts() []*model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// ClearResolved removes resolved and dismissed alerts.
func (e *AlertEngine) ClearResolved() int {
	e.mu.Lock()
	kept := e.alerts[:0]
	removed := 0
	for _, a := range e.alerts {
		if a.Status == model.AlertStatusResolved || a.Status == model.AlertStatusDismissed {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	e.alerts = kept
	snapshot := e.snapshotLocked()
	subs := e.subscribersLocked()
	e.mu.Unlock()

	if removed > 0 {
		for _, fn := range subs {
			fn(snapshot)
		}
	}
	return removed
}

// ClearAll removes every alert.
func (e *AlertEngine) ClearAll() {
	e.mu.Lock()
	e.alerts = nil
	snapshot := e.snapshotLocked()
	subs := e.subscribersLocked()
	e.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Summary recomputes aggregate alert counts in one pass.
func (e *AlertEngine) Summary() model.AlertSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	summary := model.AlertSummary{
		BySeverity: make(map[model.AlertSeverity]int),
		ByKind:     make(map[string]int),
	}
	now := e.clk.Now()
	for _, a := range e.alerts {
		summary.Total++
		switch a.Status {
		case model.AlertStatusActive:
			summary.Active++
		case model.AlertStatusAcknowledged:
			summary.Acknowledged++
		case model.AlertStatusResolved:
			summary.Resolved++
		case model.AlertStatusDismissed:
			summary.Dismissed++
		}
		summary.BySeverity[a.Severity]++
		summary.ByKind[a.Kind]++
	}

	// Most recent alerts within the last 24 hours, newest first.
	for i := len(e.alerts) - 1; i >= 0 && len(summary.Recent) < e.opts.RecentLimit; i-- {
		a := e.alerts[i]
		if now.Sub(a.TriggeredAt) <= 24*time.Hour {
			summary.Recent = append(summary.Recent, a.Clone())
		}
	}
	return summary
}

// Subscribe registers a callback invoked with a full alert snapshot on
// every mutation. The returned function removes the subscription.
func (e *AlertEngine) Subscribe(fn func([]*model.Alert)) func() {
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subscribers, id)
		e.mu.Unlock()
	}
}

// RegisterChannel registers a notification channel receiving every new
// alert. Send failures are logged, never propagated.
func (e *AlertEngine) RegisterChannel(name string, ch NotificationChannel) {
	e.mu.Lock()
	e.channels[name] = ch
	e.mu.Unlock()
}

// UnregisterChannel removes a notification channel.
func (e *AlertEngine) UnregisterChannel(name string) {
	e.mu.Lock()
	delete(e.channels, name)
	e.mu.Unlock()
}

// StartMonitoring runs fetch then Evaluate on a fixed interval. A tick
// is skipped when the previous run is still in flight; fetch failures
// are logged and do not stop the loop. Idempotent.
func (e *AlertEngine) StartMonitoring(fetch FetchFunc, interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.monitorTimer != nil {
		return
	}
	e.monitorFetch = fetch
	e.monitorInterval = interval
	e.monitorTimer = e.clk.AfterFunc(interval, e.monitorTick)
	e.logger.Info("Monitoring started", zap.Duration("interval", interval))
}

// StopMonitoring cancels the monitoring loop. Idempotent.
func (e *AlertEngine) StopMonitoring() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.monitorTimer == nil {
		return
	}
	e.monitorTimer.Stop()
	e.monitorTimer = nil
	e.logger.Info("Monitoring stopped")
}

func (e *AlertEngine) monitorTick() {
	e.mu.Lock()
	if e.monitorTimer == nil {
		// Stopped after the timer fired.
		e.mu.Unlock()
		return
	}
	e.monitorTimer = e.clk.AfterFunc(e.monitorInterval, e.monitorTick)
	fetch := e.monitorFetch
	e.mu.Unlock()

	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug("Skipping monitoring tick, previous run still in flight")
		return
	}
	defer e.inFlight.Store(false)

	snap, err := fetch(context.Background())
	if err != nil {
		e.logger.Error("Failed to fetch metric snapshot", zap.Error(err))
		return
	}
	e.Evaluate(snap.Kind, snap.Fields)
}

// Dispose stops monitoring and drops all subscribers and channels.
func (e *AlertEngine) Dispose() {
	e.StopMonitoring()
	e.mu.Lock()
	e.subscribers = make(map[int]func([]*model.Alert))
	e.channels = make(map[string]NotificationChannel)
	e.mu.Unlock()
}

func (e *AlertEngine) snapshotLocked() []*model.Alert {
	out := make([]*model.Alert, len(e.alerts))
	for i, a := range e.alerts {
		out[i] = a.Clone()
	}
	return out
}

func (e *AlertEngine) subscribersLocked() []func([]*model.Alert) {
	out := make([]func([]*model.Alert), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		out = append(out, fn)
	}
	return out
}

// trimLocked enforces the alert collection cap, dropping oldest first.
func (e *AlertEngine) trimLocked() {
	if over := len(e.alerts) - e.opts.MaxAlerts; over > 0 {
		e.alerts = append([]*model.Alert(nil), e.alerts[over:]...)
	}
}
