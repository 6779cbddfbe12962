package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/queuectl/job"
)

// PanicError is returned by Recover when a handler panics. Its message
// becomes the job's last_error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Recover turns a panic anywhere below it in the chain into a
// *PanicError, so the attempt is finalized like any other failure.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			pe := &PanicError{Value: r, Stack: debug.Stack()}
			logger.Error("job attempt panicked",
				slog.String("job_id", j.ID.String()),
				slog.String("command", j.Command),
				slog.String("worker_id", j.WorkerID.String()),
				slog.Int("attempt", j.Attempts+1),
				slog.Any("panic", r),
				slog.String("stack", string(pe.Stack)),
			)
			err = pe
		}()
		return next(ctx)
	}
}
