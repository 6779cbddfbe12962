package dlq

import (
	"context"
	"fmt"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Service provides DLQ operations over a job store.
type Service struct {
	store      job.Store
	extensions *ext.Registry
	clock      queuectl.Clock
}

// NewService creates a DLQ service.
func NewService(store job.Store, extensions *ext.Registry, clock queuectl.Clock) *Service {
	return &Service{store: store, extensions: extensions, clock: clock}
}

// List returns dead jobs, newest first.
func (s *Service) List(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return job.Collect(s.store.QueryJobs(ctx, job.QueryOpts{
		ListOpts: opts,
		State:    job.StateDead,
		Order:    job.OrderDesc,
	}))
}

// Count returns the number of dead jobs.
func (s *Service) Count(ctx context.Context) (int64, error) {
	counts, err := s.store.CountByState(ctx)
	if err != nil {
		return 0, err
	}
	return counts[job.StateDead], nil
}

// Retry moves a dead job back to pending with attempts reset to zero. The
// job's command, max_retries, last_error and output are kept.
func (s *Service) Retry(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.State != job.StateDead {
		return nil, fmt.Errorf("%w: job %s is %s, not dead", queuectl.ErrInvalidState, jobID, j.State)
	}

	p := job.Patch{
		State:     job.StatePending,
		WorkerID:  id.Nil,
		NextRunAt: nil,
		UpdatedAt: s.clock.Now(),
		Attempts:  job.Ptr(0),
	}
	ok, err := s.store.ConditionalUpdate(ctx, jobID, job.StateDead, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: job %s left dead before retry", queuectl.ErrInvalidState, jobID)
	}

	p.Apply(j)
	s.extensions.EmitJobRequeued(ctx, j)
	return j, nil
}
