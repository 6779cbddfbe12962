package middleware

import (
	"context"

	"github.com/xraph/queuectl/job"
)

// Handler runs one attempt of a job's command.
type Handler func(ctx context.Context) error

// Middleware wraps the attempt of j. It must call next at most once.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes mws into one Middleware. The first entry is the
// outermost: Chain(a, b) runs a, then b, then the handler. Nil entries
// are skipped.
func Chain(mws ...Middleware) Middleware {
	active := make([]Middleware, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			active = append(active, m)
		}
	}

	return func(ctx context.Context, j *job.Job, next Handler) error {
		return wrap(active, j, next)(ctx)
	}
}

// wrap binds mws around h for a single job.
func wrap(mws []Middleware, j *job.Job, h Handler) Handler {
	if len(mws) == 0 {
		return h
	}
	inner := wrap(mws[1:], j, h)
	outer := mws[0]
	return func(ctx context.Context) error {
		return outer(ctx, j, inner)
	}
}
