package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type jobEnqueuedEntry struct {
	name string
	hook JobEnqueued
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobRetryingEntry struct {
	name string
	hook JobRetrying
}

type jobDeadEntry struct {
	name string
	hook JobDead
}

type jobRequeuedEntry struct {
	name string
	hook JobRequeued
}

type workerStartedEntry struct {
	name string
	hook WorkerStarted
}

type workerStoppedEntry struct {
	name string
	hook WorkerStopped
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register must not be called concurrently with the Emit methods; the
// engine registers everything before any worker starts.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobEnqueued   []jobEnqueuedEntry
	jobStarted    []jobStartedEntry
	jobCompleted  []jobCompletedEntry
	jobRetrying   []jobRetryingEntry
	jobDead       []jobDeadEntry
	jobRequeued   []jobRequeuedEntry
	workerStarted []workerStartedEntry
	workerStopped []workerStoppedEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobEnqueued); ok {
		r.jobEnqueued = append(r.jobEnqueued, jobEnqueuedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobRetrying); ok {
		r.jobRetrying = append(r.jobRetrying, jobRetryingEntry{name, h})
	}
	if h, ok := e.(JobDead); ok {
		r.jobDead = append(r.jobDead, jobDeadEntry{name, h})
	}
	if h, ok := e.(JobRequeued); ok {
		r.jobRequeued = append(r.jobRequeued, jobRequeuedEntry{name, h})
	}
	if h, ok := e.(WorkerStarted); ok {
		r.workerStarted = append(r.workerStarted, workerStartedEntry{name, h})
	}
	if h, ok := e.(WorkerStopped); ok {
		r.workerStopped = append(r.workerStopped, workerStoppedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobEnqueued notifies all extensions that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	for _, e := range r.jobEnqueued {
		if err := e.hook.OnJobEnqueued(ctx, j); err != nil {
			r.logHookError("OnJobEnqueued", e.name, err)
		}
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobRetrying notifies all extensions that implement JobRetrying.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) {
	for _, e := range r.jobRetrying {
		if err := e.hook.OnJobRetrying(ctx, j, attempt, nextRunAt); err != nil {
			r.logHookError("OnJobRetrying", e.name, err)
		}
	}
}

// EmitJobDead notifies all extensions that implement JobDead.
func (r *Registry) EmitJobDead(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobDead {
		if err := e.hook.OnJobDead(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobDead", e.name, err)
		}
	}
}

// EmitJobRequeued notifies all extensions that implement JobRequeued.
func (r *Registry) EmitJobRequeued(ctx context.Context, j *job.Job) {
	for _, e := range r.jobRequeued {
		if err := e.hook.OnJobRequeued(ctx, j); err != nil {
			r.logHookError("OnJobRequeued", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Worker event emitters
// ──────────────────────────────────────────────────

// EmitWorkerStarted notifies all extensions that implement WorkerStarted.
func (r *Registry) EmitWorkerStarted(ctx context.Context, workerID id.WorkerID) {
	for _, e := range r.workerStarted {
		if err := e.hook.OnWorkerStarted(ctx, workerID); err != nil {
			r.logHookError("OnWorkerStarted", e.name, err)
		}
	}
}

// EmitWorkerStopped notifies all extensions that implement WorkerStopped.
func (r *Registry) EmitWorkerStopped(ctx context.Context, workerID id.WorkerID) {
	for _, e := range r.workerStopped {
		if err := e.hook.OnWorkerStopped(ctx, workerID); err != nil {
			r.logHookError("OnWorkerStopped", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
