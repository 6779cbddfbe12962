package job

import "github.com/xraph/queuectl/id"

// Options configures a single enqueue call.
type Options struct {
	// MaxRetries overrides the configured default when positive.
	MaxRetries int

	// ID pins the job ID instead of generating one.
	ID id.JobID
}

// Option is a functional option for Enqueue.
type Option func(*Options)

// WithMaxRetries sets the retry cap for the job.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithID uses a caller-supplied job ID.
func WithID(jobID id.JobID) Option {
	return func(o *Options) {
		o.ID = jobID
	}
}
