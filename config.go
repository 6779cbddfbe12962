package queuectl

import (
	"fmt"
	"time"
)

// Config holds the settings shared by the engine and the worker pool.
type Config struct {
	// MaxRetries is the default retry cap for jobs enqueued without one.
	MaxRetries int

	// BackoffBase is the exponent base for retry delays:
	// delay = ceil(BackoffBase ^ attempts) seconds.
	BackoffBase float64

	// PollInterval is how long an idle worker sleeps after a claim miss.
	PollInterval time.Duration

	// MaxWorkers bounds the count accepted by StartWorkers.
	MaxWorkers int

	// ShutdownTimeout is the maximum time the CLI waits for in-flight
	// jobs to drain on stop.
	ShutdownTimeout time.Duration

	// HeartbeatInterval is how often each worker refreshes its record in
	// the cluster store. Zero disables heartbeats.
	HeartbeatInterval time.Duration

	// WorkerTTL is how long a worker record may go without a heartbeat
	// before it is reported as stale.
	WorkerTTL time.Duration
}

// DefaultConfig returns a Config with the stock defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		BackoffBase:       2,
		PollInterval:      2 * time.Second,
		MaxWorkers:        10,
		ShutdownTimeout:   30 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		WorkerTTL:         30 * time.Second,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 1:
		return fmt.Errorf("%w: max_retries must be >= 1, got %d", ErrInvalidConfig, c.MaxRetries)
	case c.BackoffBase <= 1:
		return fmt.Errorf("%w: backoff_base must be > 1, got %g", ErrInvalidConfig, c.BackoffBase)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalidConfig, c.PollInterval)
	case c.MaxWorkers < 1:
		return fmt.Errorf("%w: max_workers must be >= 1, got %d", ErrInvalidConfig, c.MaxWorkers)
	}
	return nil
}
