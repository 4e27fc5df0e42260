package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusDismissed    AlertStatus = "dismissed"
)

// Terminal reports whether the status admits no further transitions.
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusResolved || s == AlertStatusDismissed
}

// ConditionOperator represents a comparison operator in a threshold condition
type ConditionOperator string

const (
	OperatorGreaterThan    ConditionOperator = "gt"
	OperatorGreaterOrEqual ConditionOperator = "gte"
	OperatorLessThan       ConditionOperator = "lt"
	OperatorLessOrEqual    ConditionOperator = "lte"
	OperatorEqual          ConditionOperator = "eq"
	OperatorNotEqual       ConditionOperator = "neq"
)

// Condition is a single comparison within a threshold. All conditions
// of a threshold must hold for it to fire.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    interface{}       `json:"value"`
	Unit     string            `json:"unit,omitempty"`
}

// NotificationPrefs controls how a fired threshold is surfaced to the user
type NotificationPrefs struct {
	Toast            bool          `json:"toast"`
	Center           bool          `json:"center"`
	Sound            bool          `json:"sound"`
	Persistent       bool          `json:"persistent"`
	AutoResolve      bool          `json:"auto_resolve"`
	AutoResolveDelay time.Duration `json:"auto_resolve_delay,omitempty"`
}

// AlertThreshold defines a rule for generating alerts
type AlertThreshold struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled"`
	Severity    AlertSeverity     `json:"severity"`
	Conditions  []Condition       `json:"conditions"`
	Notify      NotificationPrefs `json:"notify"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Alert represents a live occurrence of a threshold match. The threshold
// reference is weak: only the id is kept and severity is denormalized at
// creation time, so deleting the threshold never invalidates the alert.
type Alert struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"`
	Severity    AlertSeverity `json:"severity"`
	Status      AlertStatus   `json:"status"`
	Title       string        `json:"title"`
	Message     string        `json:"message"`
	ThresholdID string        `json:"threshold_id,omitempty"`

	TriggeredAt    time.Time  `json:"triggered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	DismissedAt    *time.Time `json:"dismissed_at,omitempty"`
	AckBy          string     `json:"ack_by,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`

	CurrentValue   float64  `json:"current_value"`
	ThresholdValue float64  `json:"threshold_value"`
	AffectedItems  []string `json:"affected_items,omitempty"`
}

// Clone returns a deep copy of the alert.
func (a *Alert) Clone() *Alert {
	c := *a
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	if a.DismissedAt != nil {
		t := *a.DismissedAt
		c.DismissedAt = &t
	}
	if a.AffectedItems != nil {
		c.AffectedItems = append([]string(nil), a.AffectedItems...)
	}
	return &c
}

// AlertSummary aggregates the current alert collection
type AlertSummary struct {
	Total        int                   `json:"total"`
	Active       int                   `json:"active"`
	Acknowledged int                   `json:"acknowledged"`
	Resolved     int                   `json:"resolved"`
	Dismissed    int                   `json:"dismissed"`
	BySeverity   map[AlertSeverity]int `json:"by_severity"`
	ByKind       map[string]int        `json:"by_kind"`
	Recent       []*Alert              `json:"recent"`
}
