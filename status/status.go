// Package status rolls up job counts and worker liveness for the status
// command and the /api/status endpoint. Everything here is read-only.
package status

import (
	"context"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/job"
)

// Summary holds a count for every job state, zeros included.
type Summary struct {
	Counts map[job.State]int64 `json:"counts"`
}

// Total returns the sum of all counts.
func (s Summary) Total() int64 {
	var n int64
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// WorkerStatus is a liveness record annotated with staleness.
type WorkerStatus struct {
	cluster.Worker
	Stale bool `json:"stale"`
}

// Report is a Summary plus the worker records visible in the store.
type Report struct {
	Summary
	Total   int64          `json:"total"`
	Workers []WorkerStatus `json:"workers"`
}

// ActiveWorkers counts records that are neither stale nor draining.
func (r *Report) ActiveWorkers() int {
	n := 0
	for _, w := range r.Workers {
		if !w.Stale && w.State == cluster.WorkerActive {
			n++
		}
	}
	return n
}

// Aggregator computes summaries from the job and cluster stores.
type Aggregator struct {
	jobs    job.Store
	workers cluster.Store
	clock   queuectl.Clock
	ttl     time.Duration
}

// NewAggregator creates an Aggregator. workers may be nil, in which case
// reports carry no worker records. A record last seen more than ttl ago
// is flagged stale.
func NewAggregator(jobs job.Store, workers cluster.Store, clock queuectl.Clock, ttl time.Duration) *Aggregator {
	return &Aggregator{jobs: jobs, workers: workers, clock: clock, ttl: ttl}
}

// Summary returns the count of jobs in every state.
func (a *Aggregator) Summary(ctx context.Context) (Summary, error) {
	counts, err := a.jobs.CountByState(ctx)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Counts: make(map[job.State]int64, len(job.States))}
	for _, st := range job.States {
		out.Counts[st] = counts[st]
	}
	return out, nil
}

// Report returns the summary together with the worker records.
func (a *Aggregator) Report(ctx context.Context) (*Report, error) {
	sum, err := a.Summary(ctx)
	if err != nil {
		return nil, err
	}
	r := &Report{Summary: sum, Total: sum.Total(), Workers: []WorkerStatus{}}
	if a.workers == nil {
		return r, nil
	}

	records, err := a.workers.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	for _, w := range records {
		r.Workers = append(r.Workers, WorkerStatus{Worker: *w, Stale: w.Stale(now, a.ttl)})
	}
	return r, nil
}
