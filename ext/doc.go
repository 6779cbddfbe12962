// Package ext defines the extension system for queuectl.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics or publishing events to a broker. Each lifecycle hook
// is a separate interface so extensions opt in only to the events they
// care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued]: job was accepted into the queue
//   - [JobStarted]: a worker claimed the job and is about to run it
//   - [JobCompleted]: the command exited 0
//   - [JobRetrying]: the attempt failed and a retry is scheduled
//   - [JobDead]: the attempt failed and retries are exhausted
//   - [JobRequeued]: a dead job was revived from the DLQ
//
// # Worker Hooks
//
//   - [WorkerStarted], [WorkerStopped]: a worker goroutine began or ended
//   - [Shutdown]: the engine is shutting down
//
// Hooks run synchronously on the calling worker. Errors are logged by the
// [Registry] and never change the job's outcome.
package ext
