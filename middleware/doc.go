// Package middleware provides composable middleware around command
// execution.
//
// A [Middleware] wraps the handler that runs a claimed job's command.
// Middleware are composed into a chain using [Chain]; the first middleware
// in the slice is the outermost wrapper.
//
//	// logging → recover → runner
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs job id, command, attempt, duration, and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records execution duration and outcome counters
//
// A non-nil error returned from the chain is a failed attempt: the
// executor finalizes it through the retry path.
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
