package model

import "time"

// RefreshConfig controls how a refresh job is scheduled and retried.
// When Schedule is set it takes precedence over Interval and is parsed
// as a cron expression with a seconds field.
type RefreshConfig struct {
	Enabled         bool          `json:"enabled"`
	Interval        time.Duration `json:"interval"`
	Schedule        string        `json:"schedule,omitempty"`
	RetryAttempts   int           `json:"retry_attempts"`
	RetryDelay      time.Duration `json:"retry_delay"`
	OnlyWhenVisible bool          `json:"only_when_visible"`
}

// RefreshJob is a scheduled, retryable unit of periodic data refresh
type RefreshJob struct {
	ID      string                 `json:"id"`
	Kind    string                 `json:"kind"`
	Config  RefreshConfig          `json:"config"`
	Filters map[string]interface{} `json:"filters,omitempty"`

	LastRun           *time.Time `json:"last_run,omitempty"`
	NextRun           *time.Time `json:"next_run,omitempty"`
	IsRunning         bool       `json:"is_running"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	SuccessCount      int        `json:"success_count"`
}

// Clone returns a copy of the job safe to hand to subscribers.
func (j *RefreshJob) Clone() *RefreshJob {
	c := *j
	if j.LastRun != nil {
		t := *j.LastRun
		c.LastRun = &t
	}
	if j.NextRun != nil {
		t := *j.NextRun
		c.NextRun = &t
	}
	if j.Filters != nil {
		c.Filters = make(map[string]interface{}, len(j.Filters))
		for k, v := range j.Filters {
			c.Filters[k] = v
		}
	}
	return &c
}
