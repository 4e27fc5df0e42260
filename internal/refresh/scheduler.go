package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/cache"
	"github.com/t77yq/dashmon/internal/clock"
	"github.com/t77yq/dashmon/internal/metrics"
	"github.com/t77yq/dashmon/internal/model"
	"github.com/t77yq/dashmon/internal/source"
)

// Evaluator receives fetched snapshots for threshold evaluation.
type Evaluator interface {
	Evaluate(kind string, fields map[string]interface{}) []*model.Alert
}

// CacheWriter stores fetched snapshots.
type CacheWriter interface {
	Set(key string, value interface{}, ttl ...time.Duration)
}

// SubscribeFunc receives the job state after each completed cycle:
// success with a nil error, or failure once retries are exhausted.
type SubscribeFunc func(job model.RefreshJob, success bool, err error)

type jobState struct {
	job           *model.RefreshJob
	timer         clock.Timer
	cronSpec      cron.Schedule
	cycleAttempts int
}

// Scheduler owns named refresh jobs, each bound to a metric fetch, a
// cache write, and an alert evaluation. Jobs run on interval or cron
// timers, retry failures with a fixed delay, and pause while the host
// view is hidden.
type Scheduler struct {
	logger    *zap.Logger
	clk       clock.Clock
	mcs       *metrics.Metrics
	src       source.MetricSource
	cache     CacheWriter
	evaluator Evaluator

	mu          sync.Mutex
	jobs        map[string]*jobState
	visible     bool
	stopped     bool
	subscribers map[int]SubscribeFunc
	nextSubID   int
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewScheduler creates a refresh scheduler. The host view starts
// visible. cache and evaluator may be nil when a caller only wants the
// subscriber stream.
func NewScheduler(logger *zap.Logger, clk clock.Clock, mcs *metrics.Metrics, src source.MetricSource, cacheWriter CacheWriter, evaluator Evaluator) *Scheduler {
	return &Scheduler{
		logger:      logger.Named("refresh-scheduler"),
		clk:         clk,
		mcs:         mcs,
		src:         src,
		cache:       cacheWriter,
		evaluator:   evaluator,
		jobs:        make(map[string]*jobState),
		visible:     true,
		subscribers: make(map[int]SubscribeFunc),
	}
}

// CreateJob registers a job and, when enabled, schedules its first run.
func (s *Scheduler) CreateJob(id, kind string, cfg model.RefreshConfig, filters map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	if _, exists := s.jobs[id]; exists {
		return ErrJobExists
	}

	spec, err := parseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}

	st := &jobState{
		job: &model.RefreshJob{
			ID:      id,
			Kind:    kind,
			Config:  cfg,
			Filters: filters,
		},
		cronSpec: spec,
	}
	s.jobs[id] = st

	if cfg.Enabled && s.visible {
		s.scheduleLocked(st, s.delayLocked(st))
	}

	s.logger.Info("Created refresh job",
		zap.String("id", id),
		zap.String("kind", kind),
		zap.Duration("interval", cfg.Interval),
		zap.String("schedule", cfg.Schedule))
	return nil
}

func parseSchedule(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, nil
	}
	spec, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return spec, nil
}

// delayLocked computes the next run delay: cron next-fire when the job
// carries a schedule, the configured interval otherwise.
func (s *Scheduler) delayLocked(st *jobState) time.Duration {
	if st.cronSpec != nil {
		now := s.clk.Now()
		return st.cronSpec.Next(now).Sub(now)
	}
	return st.job.Config.Interval
}

func (s *Scheduler) scheduleLocked(st *jobState, delay time.Duration) {
	if s.stopped {
		return
	}
	next := s.clk.Now().Add(delay)
	st.job.NextRun = &next
	id := st.job.ID
	st.timer = s.clk.AfterFunc(delay, func() {
		s.runJob(id, false)
	})
}

// runJob executes one fetch cycle for the job. isRetry marks runs
// scheduled by the retry path so the per-cycle attempt counter is not
// reset.
func (s *Scheduler) runJob(id string, isRetry bool) {
	s.mu.Lock()
	st, ok := s.jobs[id]
	if !ok || s.stopped {
		// Removed or shut down after the timer fired.
		s.mu.Unlock()
		return
	}
	st.timer = nil

	if st.job.IsRunning {
		s.mu.Unlock()
		s.recordRun("skipped")
		s.logger.Debug("Skipping refresh, job already running", zap.String("id", id))
		return
	}
	if st.job.Config.OnlyWhenVisible && !s.visible {
		// Not retried immediately: rescheduled for the normal interval.
		s.scheduleLocked(st, s.delayLocked(st))
		s.mu.Unlock()
		s.recordRun("skipped")
		return
	}

	if !isRetry {
		st.cycleAttempts = 0
	}
	st.job.IsRunning = true
	now := s.clk.Now()
	st.job.LastRun = &now
	st.job.NextRun = nil
	kind := st.job.Kind
	filters := st.job.Filters
	s.mu.Unlock()

	snap, err := s.src.Fetch(context.Background(), kind, filters)

	s.mu.Lock()
	st, ok = s.jobs[id]
	if !ok {
		// Removed while the fetch was in flight.
		s.mu.Unlock()
		return
	}
	st.job.IsRunning = false

	if err == nil {
		st.job.SuccessCount++
		st.job.ConsecutiveErrors = 0
		st.cycleAttempts = 0
		if s.visible && st.job.Config.Enabled {
			s.scheduleLocked(st, s.delayLocked(st))
		}
		jobCopy := *st.job.Clone()
		subs := s.subscribersLocked()
		s.mu.Unlock()

		s.recordRun("success")
		if s.cache != nil && snap != nil {
			s.cache.Set(cache.BuildKey(kind, filters), snap)
		}
		if s.evaluator != nil && snap != nil {
			s.evaluator.Evaluate(snap.Kind, snap.Fields)
		}
		for _, fn := range subs {
			fn(jobCopy, true, nil)
		}
		return
	}

	st.cycleAttempts++
	if st.cycleAttempts <= st.job.Config.RetryAttempts {
		// Fixed retry delay, no backoff.
		if s.visible {
			next := s.clk.Now().Add(st.job.Config.RetryDelay)
			st.job.NextRun = &next
			st.timer = s.clk.AfterFunc(st.job.Config.RetryDelay, func() {
				s.runJob(id, true)
			})
		}
		attempt := st.cycleAttempts
		s.mu.Unlock()

		s.recordRun("failure")
		s.logger.Warn("Refresh failed, scheduling retry",
			zap.String("id", id),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return
	}

	// Retries exhausted: report once, resume on the next normal interval.
	st.job.ConsecutiveErrors++
	if s.visible && st.job.Config.Enabled {
		s.scheduleLocked(st, s.delayLocked(st))
	}
	jobCopy := *st.job.Clone()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.recordRun("failure")
	s.logger.Error("Refresh failed, retries exhausted",
		zap.String("id", id),
		zap.Int("consecutive_errors", jobCopy.ConsecutiveErrors),
		zap.Error(err))
	for _, fn := range subs {
		fn(jobCopy, false, err)
	}
}

// RefreshNow forces an immediate run outside the timer, subject to the
// same overlap guard. It blocks for the duration of the fetch.
func (s *Scheduler) RefreshNow(id string) error {
	s.mu.Lock()
	st, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	if st.job.IsRunning {
		s.mu.Unlock()
		return ErrJobRunning
	}
	if !st.job.Config.Enabled {
		s.mu.Unlock()
		return ErrJobDisabled
	}
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	s.mu.Unlock()

	s.runJob(id, false)
	return nil
}

// SetVisible records host view visibility. Hiding cancels every pending
// timer without recording state changes; becoming visible reschedules
// every still-enabled job from now.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible == visible {
		return
	}
	s.visible = visible

	if !visible {
		for _, st := range s.jobs {
			if st.timer != nil {
				st.timer.Stop()
				st.timer = nil
			}
			st.job.NextRun = nil
		}
		s.logger.Info("View hidden, refresh jobs paused")
		return
	}

	for _, st := range s.jobs {
		if st.job.Config.Enabled && st.timer == nil && !st.job.IsRunning {
			s.scheduleLocked(st, s.delayLocked(st))
		}
	}
	s.logger.Info("View visible, refresh jobs resumed")
}

// UpdateJobConfig replaces a job's configuration and reschedules it.
func (s *Scheduler) UpdateJobConfig(id string, cfg model.RefreshConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	spec, err := parseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}

	st.job.Config = cfg
	st.cronSpec = spec
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
		st.job.NextRun = nil
	}
	if cfg.Enabled && s.visible && !st.job.IsRunning {
		s.scheduleLocked(st, s.delayLocked(st))
	}
	return nil
}

// StartJob enables the job and schedules it if not already pending.
// Idempotent.
func (s *Scheduler) StartJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	st.job.Config.Enabled = true
	if st.timer == nil && s.visible && !st.job.IsRunning {
		s.scheduleLocked(st, s.delayLocked(st))
	}
	return nil
}

// StopJob disables the job and clears its pending timer. Recorded
// counts are untouched. Idempotent.
func (s *Scheduler) StopJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	st.job.Config.Enabled = false
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.job.NextRun = nil
	return nil
}

// RemoveJob stops and deletes the job. Removing an unknown id is a
// no-op.
func (s *Scheduler) RemoveJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.jobs[id]
	if !ok {
		return
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(s.jobs, id)
	s.logger.Info("Removed refresh job", zap.String("id", id))
}

// GetJob returns a copy of the job.
func (s *Scheduler) GetJob(id string) (*model.RefreshJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return st.job.Clone(), nil
}

// Jobs returns copies of all registered jobs.
func (s *Scheduler) Jobs() []*model.RefreshJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.RefreshJob, 0, len(s.jobs))
	for _, st := range s.jobs {
		out = append(out, st.job.Clone())
	}
	return out
}

// Subscribe registers a callback for per-cycle job outcomes. The
// returned function removes the subscription.
func (s *Scheduler) Subscribe(fn SubscribeFunc) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Stop cancels every pending timer and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for _, st := range s.jobs {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
	s.logger.Info("Refresh scheduler stopped")
}

func (s *Scheduler) subscribersLocked() []SubscribeFunc {
	out := make([]SubscribeFunc, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		out = append(out, fn)
	}
	return out
}

func (s *Scheduler) recordRun(result string) {
	if s.mcs != nil {
		s.mcs.RefreshRuns.WithLabelValues(result).Inc()
	}
}
