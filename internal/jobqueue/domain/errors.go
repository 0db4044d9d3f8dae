package domain

import "errors"

var (
	ErrInvalidTask      = errors.New("invalid_task")
	ErrUnknownTask      = errors.New("unknown_task")
	ErrJobNotFound      = errors.New("job_not_found")
	ErrLockUnavailable  = errors.New("lock_unavailable")
	ErrQueueUnavailable = errors.New("queue_unavailable")
	ErrLeaseLost        = errors.New("lease_lost")
)
