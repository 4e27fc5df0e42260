package monitor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/clock"
	"github.com/t77yq/dashmon/internal/metrics"
	"github.com/t77yq/dashmon/internal/model"
)

// NotificationChannel represents a channel for sending alert notifications
type NotificationChannel interface {
	Send(alert *model.Alert) error
}

// FetchFunc fetches a metric snapshot for the monitoring loop.
type FetchFunc func(ctx context.Context) (*model.Snapshot, error)

// Options configures an AlertEngine. Zero fields fall back to defaults.
type Options struct {
	DedupWindow time.Duration // suppression window per alert kind, default 5m
	MaxAlerts   int           // alert collection cap, default 100
	RecentLimit int           // max alerts in a summary's recent list, default 10
}

// AlertEngine converts metric snapshots into alerts and manages their
// lifecycle. All mutations are serialized behind one mutex; subscribers
// and channels are invoked outside the lock with copied snapshots.
type AlertEngine struct {
	logger *zap.Logger
	clk    clock.Clock
	mcs    *metrics.Metrics
	opts   Options

	mu          sync.Mutex
	thresholds  map[string]*model.AlertThreshold
	alerts      []*model.Alert
	subscribers map[int]func([]*model.Alert)
	nextSubID   int
	channels    map[string]NotificationChannel

	monitorTimer    clock.Timer
	monitorFetch    FetchFunc
	monitorInterval time.Duration
	inFlight        atomic.Bool
}

// NewAlertEngine creates a new alert engine
func NewAlertEngine(logger *zap.Logger, clk clock.Clock, mcs *metrics.Metrics, opts Options) *AlertEngine {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = 5 * time.Minute
	}
	if opts.MaxAlerts <= 0 {
		opts.MaxAlerts = 100
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 10
	}
	return &AlertEngine{
		logger:      logger.Named("alert-engine"),
		clk:         clk,
		mcs:         mcs,
		opts:        opts,
		thresholds:  make(map[string]*model.AlertThreshold),
		subscribers: make(map[int]func([]*model.Alert)),
		channels:    make(map[string]NotificationChannel),
	}
}

// AddThreshold adds a new alert threshold
func (e *AlertEngine) AddThreshold(t *model.AlertThreshold) error {
	e.mu.Lock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if _, exists := e.thresholds[t.ID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("threshold already exists: %s", t.ID)
	}
	t.CreatedAt = e.clk.Now()
	t.UpdatedAt = t.CreatedAt
	e.thresholds[t.ID] = t
	e.mu.Unlock()
	return nil
}

// UpdateThreshold updates an existing alert threshold
func (e *AlertEngine) UpdateThreshold(t *model.AlertThreshold) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.thresholds[t.ID]; !ok {
		return fmt.Errorf("threshold not found: %s", t.ID)
	}
	t.UpdatedAt = e.clk.Now()
	e.thresholds[t.ID] = t
	return nil
}

// DeleteThreshold deletes an alert threshold. Alerts referencing it are
// untouched: they carry the threshold id weakly and their severity was
// copied at creation time.
func (e *AlertEngine) DeleteThreshold(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.thresholds[id]; !ok {
		return fmt.Errorf("threshold not found: %s", id)
	}
	delete(e.thresholds, id)
	return nil
}

// GetThreshold returns a threshold by ID
func (e *AlertEngine) GetThreshold(id string) (*model.AlertThreshold, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.thresholds[id]
	if !ok {
		return nil, fmt.Errorf("threshold not found: %s", id)
	}
	return t, nil
}

// ListThresholds lists all thresholds
func (e *AlertEngine) ListThresholds() []*model.AlertThreshold {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.AlertThreshold, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetThresholds replaces the threshold set, used when loading a
// persisted configuration.
func (e *AlertEngine) SetThresholds(thresholds []*model.AlertThreshold) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = make(map[string]*model.AlertThreshold, len(thresholds))
	for _, t := range thresholds {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		e.thresholds[t.ID] = t
	}
}

// Evaluate checks the snapshot fields against every enabled threshold
// of the matching kind and returns the newly created alerts. A match is
// suppressed when an active alert of the same kind was triggered within
// the dedup window.
func (e *AlertEngine) Evaluate(kind string, fields map[string]interface{}) []*model.Alert {
	e.mu.Lock()

	now := e.clk.Now()
	var created []*model.Alert
	for _, t := range e.sortedThresholdsLocked() {
		if !t.Enabled || t.Kind != kind {
			continue
		}
		if !e.conditionsMatch(t, fields) {
			continue
		}
		if e.isDuplicateLocked(t.Kind, now) {
			e.logger.Debug("Suppressed duplicate alert",
				zap.String("kind", t.Kind),
				zap.Duration("dedup_window", e.opts.DedupWindow))
			continue
		}
		alert := e.buildAlert(t, fields, now)
		e.alerts = append(e.alerts, alert)
		created = append(created, alert)
		if e.mcs != nil {
			e.mcs.AlertsTriggered.WithLabelValues(string(alert.Severity)).Inc()
		}
		e.logger.Info("Alert created",
			zap.String("id", alert.ID),
			zap.String("threshold_id", alert.ThresholdID),
			zap.String("kind", alert.Kind),
			zap.String("severity", string(alert.Severity)))
	}

	e.trimLocked()

	var snapshot []*model.Alert
	var subs []func([]*model.Alert)
	var chans []NotificationChannel
	if len(created) > 0 {
		snapshot = e.snapshotLocked()
		subs = e.subscribersLocked()
		for _, ch := range e.channels {
			chans = append(chans, ch)
		}
	}
	e.mu.Unlock()

	if len(created) == 0 {
		return nil
	}

	for _, fn := range subs {
		fn(snapshot)
	}
	for _, alert := range created {
		for _, ch := range chans {
			if err := ch.Send(alert.Clone()); err != nil {
				e.logger.Error("Failed to send alert to channel", zap.Error(err))
			}
		}
	}

	out := make([]*model.Alert, len(created))
	for i, a := range created {
		out[i] = a.Clone()
	}
	return out
}

func (e *AlertEngine) sortedThresholdsLocked() []*model.AlertThreshold {
	out := make([]*model.AlertThreshold, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (e *AlertEngine) isDuplicateLocked(kind string, now time.Time) bool {
	for _, a := range e.alerts {
		if a.Kind == kind && a.Status == model.AlertStatusActive &&
			now.Sub(a.TriggeredAt) < e.opts.DedupWindow {
			return true
		}
	}
	return false
}

// conditionsMatch evaluates all conditions with AND semantics. A
// condition referencing a missing field, or a non-equality comparison
// on non-numeric values, counts as not matching.
func (e *AlertEngine) conditionsMatch(t *model.AlertThreshold, fields map[string]interface{}) bool {
	if len(t.Conditions) == 0 {
		return false
	}
	for _, cond := range t.Conditions {
		fieldVal, ok := fields[cond.Field]
		if !ok {
			e.logger.Warn("Condition references missing field",
				zap.String("threshold_id", t.ID),
				zap.String("field", cond.Field))
			return false
		}
		if !compareCondition(fieldVal, cond) {
			return false
		}
	}
	return true
}

func compareCondition(fieldVal interface{}, cond model.Condition) bool {
	fv, fok := toFloat(fieldVal)
	cv, cok := toFloat(cond.Value)
	if fok && cok {
		switch cond.Operator {
		case model.OperatorGreaterThan:
			return fv > cv
		case model.OperatorGreaterOrEqual:
			return fv >= cv
		case model.OperatorLessThan:
			return fv < cv
		case model.OperatorLessOrEqual:
			return fv <= cv
		case model.OperatorEqual:
			return fv == cv
		case model.OperatorNotEqual:
			return fv != cv
		default:
			return false
		}
	}

	fs := fmt.Sprintf("%v", fieldVal)
	cs := fmt.Sprintf("%v", cond.Value)
	switch cond.Operator {
	case model.OperatorEqual:
		return fs == cs
	case model.OperatorNotEqual:
		return fs != cs
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (e *AlertEngine) buildAlert(t *model.AlertThreshold, fields map[string]interface{}, now time.Time) *model.Alert {
	alert := &model.Alert{
		ID:          uuid.New().String(),
		Kind:        t.Kind,
		Severity:    t.Severity,
		Status:      model.AlertStatusActive,
		Title:       t.Name,
		Message:     fmt.Sprintf("Alert triggered for threshold: %s", t.Name),
		ThresholdID: t.ID,
		TriggeredAt: now,
	}
	if len(t.Conditions) > 0 {
		cond := t.Conditions[0]
		if fv, ok := toFloat(fields[cond.Field]); ok {
			alert.CurrentValue = fv
		}
		if cv, ok := toFloat(cond.Value); ok {
			alert.ThresholdValue = cv
		}
	}
	switch items := fields["affectedItems"].(type) {
	case []string:
		alert.AffectedItems = append([]string(nil), items...)
	case []interface{}:
		for _, item := range items {
			alert.AffectedItems = append(alert.AffectedItems, fmt.Sprintf("%v", item))
		}
	}
	return alert
}
