package job

import (
	"context"
	"iter"
	"time"

	"github.com/xraph/queuectl/id"
)

// Order is the creation-time ordering of a query.
type Order int

const (
	// OrderAsc returns the oldest job first. Claim scans use it.
	OrderAsc Order = iota
	// OrderDesc returns the newest job first. Listing uses it.
	OrderDesc
)

// ListOpts controls pagination for list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// QueryOpts selects jobs in a single state.
type QueryOpts struct {
	ListOpts

	State State
	Order Order

	// EligibleAt, when set, keeps only jobs whose NextRunAt is nil or not
	// after it.
	EligibleAt *time.Time
}

// Store defines the persistence contract for jobs.
type Store interface {
	// InsertJob persists a new job. It returns queuectl.ErrJobAlreadyExists
	// if the ID is taken.
	InsertJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID or returns queuectl.ErrJobNotFound.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// QueryJobs returns a lazy, single-pass sequence of jobs matching
	// opts, ordered by CreatedAt then ID. Breaking out of the range
	// releases any underlying cursor. Callers may use the store from
	// inside the range; a backend that cannot serve a second call while
	// a cursor is open must buffer the rows first.
	QueryJobs(ctx context.Context, opts QueryOpts) iter.Seq2[*Job, error]

	// ConditionalUpdate applies p only if the job's stored state equals
	// expected at the moment of the write, and reports whether it did.
	// An unknown ID reports false.
	ConditionalUpdate(ctx context.Context, jobID id.JobID, expected State, p Patch) (bool, error)

	// CountByState returns the number of jobs in each state present.
	CountByState(ctx context.Context) (map[State]int64, error)
}
