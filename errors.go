package queuectl

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("queuectl: no store configured")
	ErrStoreClosed     = errors.New("queuectl: store closed")
	ErrMigrationFailed = errors.New("queuectl: migration failed")

	// Not found errors.
	ErrJobNotFound    = errors.New("queuectl: job not found")
	ErrWorkerNotFound = errors.New("queuectl: worker not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("queuectl: job already exists")

	// State errors.
	ErrInvalidState      = errors.New("queuectl: invalid state")
	ErrWorkersRunning    = errors.New("queuectl: workers already running")
	ErrWorkersNotRunning = errors.New("queuectl: workers not running")
	ErrConsistencyFault  = errors.New("queuectl: conditional update rejected for owned job")
	ErrSequenceConsumed  = errors.New("queuectl: job sequence already consumed")

	// Validation errors.
	ErrInvalidCommand     = errors.New("queuectl: command must not be empty")
	ErrInvalidJobID       = errors.New("queuectl: invalid job id")
	ErrInvalidMaxRetries  = errors.New("queuectl: max_retries must be a positive integer")
	ErrInvalidWorkerCount = errors.New("queuectl: worker count out of range")
	ErrInvalidConfig      = errors.New("queuectl: invalid config")
)
