// Package worker provides the job execution engine: [Claim], the atomic
// pick-and-lock step; an [Executor] that runs a claimed job's command
// through middleware and finalizes the result; and a [Pool] that manages
// independent worker goroutines polling for jobs.
//
// Each worker loops IDLE → CLAIMING → EXECUTING → FINALIZING → IDLE until
// the pool is stopped or its liveness record is marked draining, then
// passes through STOPPING. A job that is executing always finishes before
// the worker exits.
package worker
