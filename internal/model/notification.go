package model

import "time"

// NotificationAction is a caller-supplied action attached to a
// notification. The handler runs on the caller's goroutine when the
// action is invoked.
type NotificationAction struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Handler func() `json:"-"`
}

// Notification is an ephemeral, user-facing rendering of an event.
// A zero Duration means the notification is persistent and never
// expires on its own; callers leaving Duration unset get a
// severity-based default unless they set Persistent.
type Notification struct {
	ID         string               `json:"id"`
	Severity   AlertSeverity        `json:"severity"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Actions    []NotificationAction `json:"actions,omitempty"`
	Duration   time.Duration        `json:"duration"`
	Persistent bool                 `json:"persistent"`
	CreatedAt  time.Time            `json:"created_at"`
}
