package ext

import (
	"context"
	"time"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is successfully enqueued.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called after a worker claims a job, before it runs.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job's command exits 0.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobRetrying is called when an attempt fails and a retry is scheduled.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error
}

// JobDead is called when an attempt fails and no retries remain.
type JobDead interface {
	OnJobDead(ctx context.Context, j *job.Job, err error) error
}

// JobRequeued is called after a dead job is moved back to pending.
type JobRequeued interface {
	OnJobRequeued(ctx context.Context, j *job.Job) error
}

// ──────────────────────────────────────────────────
// Worker hooks
// ──────────────────────────────────────────────────

// WorkerStarted is called when a worker goroutine starts polling.
type WorkerStarted interface {
	OnWorkerStarted(ctx context.Context, workerID id.WorkerID) error
}

// WorkerStopped is called after a worker goroutine has drained and exited.
type WorkerStopped interface {
	OnWorkerStopped(ctx context.Context, workerID id.WorkerID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
