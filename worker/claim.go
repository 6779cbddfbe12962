package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Claim picks the oldest eligible pending job and moves it to processing
// on behalf of workerID. It returns nil, nil when nothing is eligible or
// when another worker won the race for the candidate; the caller should
// treat both as "no job this round".
func Claim(ctx context.Context, store job.Store, workerID id.WorkerID, now time.Time) (*job.Job, error) {
	candidate, err := job.First(store.QueryJobs(ctx, job.QueryOpts{
		ListOpts:   job.ListOpts{Limit: 1},
		State:      job.StatePending,
		Order:      job.OrderAsc,
		EligibleAt: &now,
	}))
	if err != nil {
		return nil, fmt.Errorf("claim: select candidate: %w", err)
	}
	if candidate == nil {
		return nil, nil
	}

	p := job.Patch{
		State:     job.StateProcessing,
		WorkerID:  workerID,
		NextRunAt: nil,
		UpdatedAt: now,
	}
	ok, err := store.ConditionalUpdate(ctx, candidate.ID, job.StatePending, p)
	if err != nil {
		return nil, fmt.Errorf("claim: lock %s: %w", candidate.ID, err)
	}
	if !ok {
		return nil, nil
	}

	p.Apply(candidate)
	return candidate, nil
}
