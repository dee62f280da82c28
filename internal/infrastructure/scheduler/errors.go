package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobAlreadyRunning is returned when a manual trigger finds the job busy
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrSchedulerNotRunning is returned when triggering a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrPollFailed is returned when every polled status failed to fetch
	ErrPollFailed = errors.New("order poll failed")
)
