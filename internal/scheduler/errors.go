package scheduler

import "errors"

// Domain errors for the scheduler.
var (
	// ErrInvalidCycle is returned when a cycle is not a positive number of seconds.
	ErrInvalidCycle = errors.New("scheduler: invalid cycle")

	// ErrInvalidCron is returned when a crontab entry cannot be parsed.
	ErrInvalidCron = errors.New("scheduler: invalid crontab entry")

	// ErrStopped is returned by Start on a scheduler that was already stopped.
	ErrStopped = errors.New("scheduler: stopped")
)
