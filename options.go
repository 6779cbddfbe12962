package queuectl

import "time"

// Option adjusts a Config.
type Option func(*Config)

// NewConfig returns DefaultConfig with opts applied in order.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithMaxRetries sets the default retry cap for new jobs.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithBackoffBase sets the exponent base for retry delays.
func WithBackoffBase(base float64) Option {
	return func(c *Config) { c.BackoffBase = base }
}

// WithPollInterval sets how long idle workers sleep between claims.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// WithMaxWorkers bounds the number of workers a pool may run.
func WithMaxWorkers(n int) Option {
	return func(c *Config) { c.MaxWorkers = n }
}

// WithShutdownTimeout sets the drain timeout used on stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Config) { c.ShutdownTimeout = d }
}

// WithHeartbeatInterval sets how often workers refresh their records.
// Zero disables heartbeats.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Config) { c.HeartbeatInterval = d }
}

// WithWorkerTTL sets the staleness threshold for worker records.
func WithWorkerTTL(d time.Duration) Option {
	return func(c *Config) { c.WorkerTTL = d }
}
