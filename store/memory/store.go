package memory

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Ensure Store implements every subsystem store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store     = (*Store)(nil)
	_ cluster.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	jobs    map[string]*job.Job
	workers map[string]*cluster.Worker
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:    make(map[string]*job.Job),
		workers: make(map[string]*cluster.Worker),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// InsertJob persists a new job.
func (m *Store) InsertJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[j.ID.String()]; exists {
		return queuectl.ErrJobAlreadyExists
	}
	m.jobs[j.ID.String()] = j.Clone()
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, queuectl.ErrJobNotFound
	}
	return j.Clone(), nil
}

// QueryJobs returns jobs matching opts. The matching rows are copied
// under the read lock when iteration begins, so the caller may call
// back into the store while ranging.
func (m *Store) QueryJobs(_ context.Context, opts job.QueryOpts) iter.Seq2[*job.Job, error] {
	return job.SinglePass(func(yield func(*job.Job, error) bool) {
		for _, j := range m.snapshot(opts) {
			if !yield(j, nil) {
				return
			}
		}
	})
}

func (m *Store) snapshot(opts job.QueryOpts) []*job.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != opts.State {
			continue
		}
		if opts.EligibleAt != nil && j.NextRunAt != nil && j.NextRunAt.After(*opts.EligibleAt) {
			continue
		}
		matched = append(matched, j)
	}

	slices.SortFunc(matched, func(a, b *job.Job) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = cmp.Compare(a.ID.String(), b.ID.String())
		}
		if opts.Order == job.OrderDesc {
			return -c
		}
		return c
	})

	matched = applyPagination(matched, opts.ListOpts)
	out := make([]*job.Job, len(matched))
	for i, j := range matched {
		out[i] = j.Clone()
	}
	return out
}

// ConditionalUpdate applies p if the job is in state expected.
func (m *Store) ConditionalUpdate(_ context.Context, jobID id.JobID, expected job.State, p job.Patch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok || j.State != expected {
		return false, nil
	}
	p.Apply(j)
	return true, nil
}

// CountByState returns the number of jobs per state.
func (m *Store) CountByState(_ context.Context) (map[job.State]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[job.State]int64)
	for _, j := range m.jobs {
		counts[j.State]++
	}
	return counts, nil
}

// ──────────────────────────────────────────────────
// Cluster Store
// ──────────────────────────────────────────────────

// RegisterWorker adds or replaces a worker record.
func (m *Store) RegisterWorker(_ context.Context, w *cluster.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.workers[w.ID.String()] = &cp
	return nil
}

// DeregisterWorker removes a worker record.
func (m *Store) DeregisterWorker(_ context.Context, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workers, workerID.String())
	return nil
}

// HeartbeatWorker updates the last-seen timestamp for a worker.
func (m *Store) HeartbeatWorker(_ context.Context, workerID id.WorkerID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[workerID.String()]
	if !ok {
		return queuectl.ErrWorkerNotFound
	}
	w.LastSeen = at
	return nil
}

// GetWorker returns one worker record.
func (m *Store) GetWorker(_ context.Context, workerID id.WorkerID) (*cluster.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workers[workerID.String()]
	if !ok {
		return nil, queuectl.ErrWorkerNotFound
	}
	cp := *w
	return &cp, nil
}

// ListWorkers returns all worker records ordered by start time.
func (m *Store) ListWorkers(_ context.Context) ([]*cluster.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*cluster.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		cp := *w
		result = append(result, &cp)
	}
	cluster.SortByStart(result)
	return result, nil
}

// MarkDraining flags a worker record for graceful shutdown.
func (m *Store) MarkDraining(_ context.Context, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[workerID.String()]
	if !ok {
		return queuectl.ErrWorkerNotFound
	}
	w.State = cluster.WorkerDraining
	return nil
}

// ReapDeadWorkers removes and returns records last seen before cutoff.
func (m *Store) ReapDeadWorkers(_ context.Context, cutoff time.Time) ([]*cluster.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dead []*cluster.Worker
	for key, w := range m.workers {
		if w.LastSeen.Before(cutoff) {
			cp := *w
			dead = append(dead, &cp)
			delete(m.workers, key)
		}
	}
	cluster.SortByStart(dead)
	return dead, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination(jobs []*job.Job, opts job.ListOpts) []*job.Job {
	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs
}
