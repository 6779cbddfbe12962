package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/backoff"
	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/middleware"
	"github.com/xraph/queuectl/runner"
)

// ExitError is returned by the terminal handler when the command ran and
// exited non-zero.
type ExitError struct {
	Code   int
	Status string
}

func (e *ExitError) Error() string {
	if e.Status != "" {
		return e.Status
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Outcome is what one execution attempt produced.
type Outcome struct {
	// Result is the runner's result. It is the zero value if the runner
	// was never reached or could not start the process.
	Result runner.Result
	// Err is nil on success. Otherwise it is a *runner.Error, an
	// *ExitError, or whatever a middleware returned (including a
	// recovered panic).
	Err error
	// Elapsed is the wall time spent in the middleware chain.
	Elapsed time.Duration

	ran bool
}

// ExitCode is the code recorded on the job: the process exit code when
// the command ran, -1 otherwise.
func (o Outcome) ExitCode() int {
	if o.Err == nil {
		return o.Result.ExitCode
	}
	var exitErr *ExitError
	if errors.As(o.Err, &exitErr) {
		return exitErr.Code
	}
	if o.ran && o.Result.ExitCode != 0 {
		return o.Result.ExitCode
	}
	return -1
}

// Executor runs a claimed job through middleware and the command runner,
// then finalizes the job with a conditional update and emits lifecycle
// events.
type Executor struct {
	store      job.Store
	runner     runner.Runner
	extensions *ext.Registry
	backoff    backoff.Strategy
	clock      queuectl.Clock
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	store job.Store,
	run runner.Runner,
	extensions *ext.Registry,
	bo backoff.Strategy,
	clock queuectl.Clock,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		store:      store,
		runner:     run,
		extensions: extensions,
		backoff:    bo,
		clock:      clock,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs j and finalizes it.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	return e.Finalize(ctx, j, e.Run(ctx, j))
}

// Run executes j's command through the middleware chain. It never
// touches the store.
func (e *Executor) Run(ctx context.Context, j *job.Job) Outcome {
	var out Outcome

	// The terminal handler that calls the command runner.
	terminal := func(ctx context.Context) error {
		res, err := e.runner.Run(ctx, j.Command)
		out.Result = res
		if err != nil {
			return err
		}
		out.ran = true
		if res.ExitCode != 0 {
			return &ExitError{Code: res.ExitCode, Status: res.Status}
		}
		return nil
	}

	start := time.Now()
	out.Err = e.mw(ctx, j, terminal)
	out.Elapsed = time.Since(start)
	return out
}

// Finalize records the outcome of an attempt on j, which must be in
// processing. Success moves it to completed. Failure moves it to pending
// with a backoff delay, or to dead once attempts exceed MaxRetries.
//
// A rejected update means the job left processing underneath its worker.
// It is logged and reported as queuectl.ErrConsistencyFault; j is left
// unchanged.
func (e *Executor) Finalize(ctx context.Context, j *job.Job, out Outcome) error {
	now := e.clock.Now()
	attempts := j.Attempts + 1
	exitCode := out.ExitCode()

	p := job.Patch{
		UpdatedAt:    now,
		Attempts:     &attempts,
		LastExitCode: &exitCode,
		Output:       job.Ptr(out.Result.Output),
	}

	var nextRunAt time.Time
	switch {
	case out.Err == nil:
		p.State = job.StateCompleted
	case attempts > j.MaxRetries:
		p.State = job.StateDead
		p.LastError = job.Ptr(out.Err.Error())
	default:
		nextRunAt = backoff.NextRunAt(now, e.backoff, attempts)
		p.State = job.StatePending
		p.NextRunAt = &nextRunAt
		p.LastError = job.Ptr(out.Err.Error())
	}

	ok, err := e.store.ConditionalUpdate(ctx, j.ID, job.StateProcessing, p)
	if err != nil {
		e.logger.Error("failed to finalize job",
			slog.String("job_id", j.ID.String()),
			slog.String("state", string(p.State)),
			slog.String("error", err.Error()),
		)
		return err
	}
	if !ok {
		e.logger.Error("job left processing before finalize",
			slog.String("job_id", j.ID.String()),
			slog.String("worker_id", j.WorkerID.String()),
			slog.String("state", string(p.State)),
		)
		return fmt.Errorf("%w: job %s", queuectl.ErrConsistencyFault, j.ID)
	}

	p.Apply(j)

	switch j.State {
	case job.StateCompleted:
		e.extensions.EmitJobCompleted(ctx, j, out.Elapsed)
	case job.StateDead:
		e.extensions.EmitJobDead(ctx, j, out.Err)
		e.logger.Warn("job moved to DLQ after exhausting retries",
			slog.String("job_id", j.ID.String()),
			slog.Int("attempts", j.Attempts),
			slog.String("error", out.Err.Error()),
		)
	default:
		e.extensions.EmitJobRetrying(ctx, j, attempts, nextRunAt)
		e.logger.Info("job scheduled for retry",
			slog.String("job_id", j.ID.String()),
			slog.Int("attempt", attempts),
			slog.Int("max_retries", j.MaxRetries),
			slog.Time("next_run_at", nextRunAt),
		)
	}

	return nil
}
