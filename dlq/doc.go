// Package dlq manages the dead letter queue: jobs that exhausted their
// retry budget and now sit in the terminal dead state.
//
// The DLQ is not a separate table. A job enters it when the executor
// finalizes a failed attempt with attempts > max_retries, and it keeps its
// command, max_retries, last_error and output there for inspection.
//
// # Service
//
//	svc := dlq.NewService(store, extensions, clock)
//
//	dead, _ := svc.List(ctx, job.ListOpts{Limit: 50})
//	n, _ := svc.Count(ctx)
//
//	// Revive one job: dead -> pending with attempts reset to 0.
//	j, err := svc.Retry(ctx, jobID)
//
// Retry returns queuectl.ErrJobNotFound for an unknown ID and
// queuectl.ErrInvalidState when the job is not dead, including when
// another caller revived it first.
package dlq
