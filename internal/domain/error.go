package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrSolverUnavailable = errors.New("captcha solver unavailable or disabled")
	ErrQueueClosed       = errors.New("work queue is closed")
	ErrLockHeld          = errors.New("validation lock held by another pass")
	ErrRateLimited       = errors.New("remote endpoint rate limited the call")
	ErrRegistryRejected  = errors.New("shared registry rejected the code")
	ErrReadDatabaseRow   = errors.New("failed to read database row")
)
