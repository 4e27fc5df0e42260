package refresh

import "errors"

var (
	// ErrJobNotFound is returned when a job id is unknown
	ErrJobNotFound = errors.New("refresh job not found")

	// ErrJobExists is returned when registering a duplicate job id
	ErrJobExists = errors.New("refresh job already exists")

	// ErrJobRunning is returned when a forced run hits the overlap guard
	ErrJobRunning = errors.New("refresh job already running")

	// ErrJobDisabled is returned when forcing a run of a disabled job
	ErrJobDisabled = errors.New("refresh job disabled")

	// ErrInvalidSchedule is returned for an unparseable cron expression
	ErrInvalidSchedule = errors.New("invalid cron schedule")
)
