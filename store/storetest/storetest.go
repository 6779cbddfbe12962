// Package storetest is the behavioural suite shared by every store
// backend. A backend's tests call Run with a factory that returns a fresh,
// migrated and empty store.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/store"
)

// Factory returns an empty store ready for use. It should register any
// cleanup with t.Cleanup.
type Factory func(t *testing.T) store.Store

// base is a millisecond-aligned instant; every backend round-trips it
// exactly.
var base = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// Run executes the full conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"InsertAndGet", testInsertAndGet},
		{"InsertDuplicate", testInsertDuplicate},
		{"GetMissing", testGetMissing},
		{"QueryOrder", testQueryOrder},
		{"QueryTieBreakByID", testQueryTieBreakByID},
		{"QueryEligibleAt", testQueryEligibleAt},
		{"QueryPagination", testQueryPagination},
		{"QuerySinglePass", testQuerySinglePass},
		{"QueryAllowsNestedCalls", testQueryAllowsNestedCalls},
		{"ConditionalUpdateApplies", testConditionalUpdateApplies},
		{"ConditionalUpdateRejectsWrongState", testConditionalUpdateRejectsWrongState},
		{"ConditionalUpdateMissingID", testConditionalUpdateMissingID},
		{"ConditionalUpdateKeepsUnsetFields", testConditionalUpdateKeepsUnsetFields},
		{"ConcurrentCASSingleWinner", testConcurrentCASSingleWinner},
		{"CountByState", testCountByState},
		{"Workers", testWorkers},
		{"ReapDeadWorkers", testReapDeadWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newJob(offset time.Duration) *job.Job {
	return job.New(id.NewJobID(), "echo hi", 3, base.Add(offset))
}

func insert(t *testing.T, s store.Store, jobs ...*job.Job) {
	t.Helper()
	for _, j := range jobs {
		require.NoError(t, s.InsertJob(context.Background(), j))
	}
}

func ids(t *testing.T, seq func(func(*job.Job, error) bool)) []id.JobID {
	t.Helper()
	var out []id.JobID
	for j, err := range seq {
		require.NoError(t, err)
		out = append(out, j.ID)
	}
	return out
}

func assertTime(t *testing.T, want, got time.Time, field string) {
	t.Helper()
	assert.True(t, want.Equal(got), "%s: want %s, got %s", field, want, got)
}

// ──────────────────────────────────────────────────
// Job store
// ──────────────────────────────────────────────────

func testInsertAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob(0)
	insert(t, s, j)

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, "echo hi", got.Command)
	assert.Equal(t, job.StatePending, got.State)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, 3, got.MaxRetries)
	assertTime(t, j.CreatedAt, got.CreatedAt, "created_at")
	assertTime(t, j.UpdatedAt, got.UpdatedAt, "updated_at")
	assert.Nil(t, got.NextRunAt)
	assert.True(t, got.WorkerID.IsNil())
	assert.Nil(t, got.LastExitCode)
	assert.Nil(t, got.LastError)
	assert.Nil(t, got.Output)
}

func testInsertDuplicate(t *testing.T, s store.Store) {
	j := newJob(0)
	insert(t, s, j)

	err := s.InsertJob(context.Background(), j)
	assert.ErrorIs(t, err, queuectl.ErrJobAlreadyExists)
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.GetJob(context.Background(), id.NewJobID())
	assert.ErrorIs(t, err, queuectl.ErrJobNotFound)
}

func testQueryOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	j1, j2, j3 := newJob(0), newJob(time.Second), newJob(2*time.Second)
	insert(t, s, j3, j1, j2)

	asc := ids(t, s.QueryJobs(ctx, job.QueryOpts{State: job.StatePending, Order: job.OrderAsc}))
	assert.Equal(t, []id.JobID{j1.ID, j2.ID, j3.ID}, asc)

	desc := ids(t, s.QueryJobs(ctx, job.QueryOpts{State: job.StatePending, Order: job.OrderDesc}))
	assert.Equal(t, []id.JobID{j3.ID, j2.ID, j1.ID}, desc)

	none := ids(t, s.QueryJobs(ctx, job.QueryOpts{State: job.StateDead}))
	assert.Empty(t, none)
}

func testQueryTieBreakByID(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := newJob(0), newJob(0)
	if b.ID.String() < a.ID.String() {
		a, b = b, a
	}
	insert(t, s, b, a)

	got := ids(t, s.QueryJobs(ctx, job.QueryOpts{State: job.StatePending, Order: job.OrderAsc}))
	assert.Equal(t, []id.JobID{a.ID, b.ID}, got)
}

func testQueryEligibleAt(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := base.Add(time.Minute)

	ready := newJob(0)
	due := newJob(time.Second)
	due.NextRunAt = job.Ptr(now)
	future := newJob(2 * time.Second)
	future.NextRunAt = job.Ptr(now.Add(time.Second))
	insert(t, s, ready, due, future)

	got := ids(t, s.QueryJobs(ctx, job.QueryOpts{State: job.StatePending, EligibleAt: &now}))
	assert.Equal(t, []id.JobID{ready.ID, due.ID}, got)

	all := ids(t, s.QueryJobs(ctx, job.QueryOpts{State: job.StatePending}))
	assert.Len(t, all, 3)
}

func testQueryPagination(t *testing.T, s store.Store) {
	ctx := context.Background()
	var jobs []*job.Job
	for i := range 5 {
		jobs = append(jobs, newJob(time.Duration(i)*time.Second))
	}
	insert(t, s, jobs...)

	page := ids(t, s.QueryJobs(ctx, job.QueryOpts{
		ListOpts: job.ListOpts{Limit: 2, Offset: 1},
		State:    job.StatePending,
	}))
	assert.Equal(t, []id.JobID{jobs[1].ID, jobs[2].ID}, page)

	tail := ids(t, s.QueryJobs(ctx, job.QueryOpts{
		ListOpts: job.ListOpts{Offset: 4},
		State:    job.StatePending,
	}))
	assert.Equal(t, []id.JobID{jobs[4].ID}, tail)

	past := ids(t, s.QueryJobs(ctx, job.QueryOpts{
		ListOpts: job.ListOpts{Limit: 10, Offset: 10},
		State:    job.StatePending,
	}))
	assert.Empty(t, past)
}

func testQuerySinglePass(t *testing.T, s store.Store) {
	ctx := context.Background()
	insert(t, s, newJob(0), newJob(time.Second))

	seq := s.QueryJobs(ctx, job.QueryOpts{State: job.StatePending})
	first, err := job.Collect(seq)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	_, err = job.Collect(seq)
	assert.ErrorIs(t, err, queuectl.ErrSequenceConsumed)
}

// testQueryAllowsNestedCalls reads and writes through the store while a
// query is being ranged over. A backend that holds its cursor on the only
// connection blocks here, so the range runs under a deadline.
func testQueryAllowsNestedCalls(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := newJob(0), newJob(time.Second)
	other := newJob(2 * time.Second)
	other.State = job.StateCompleted
	insert(t, s, a, b, other)

	type result struct {
		seen []id.JobID
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		for j, err := range s.QueryJobs(ctx, job.QueryOpts{State: job.StatePending}) {
			if err != nil {
				r.err = err
				break
			}
			got, err := s.GetJob(ctx, j.ID)
			if err != nil {
				r.err = err
				break
			}
			if _, err := s.CountByState(ctx); err != nil {
				r.err = err
				break
			}
			if _, err := s.ConditionalUpdate(ctx, other.ID, job.StateCompleted, job.Patch{
				State:     job.StateCompleted,
				UpdatedAt: base.Add(time.Minute),
			}); err != nil {
				r.err = err
				break
			}
			r.seen = append(r.seen, got.ID)
		}
		done <- r
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, []id.JobID{a.ID, b.ID}, r.seen)
	case <-time.After(5 * time.Second):
		t.Fatal("store call inside a QueryJobs range did not return")
	}
}

func testConditionalUpdateApplies(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob(0)
	insert(t, s, j)

	wid := id.NewWorkerID()
	now := base.Add(time.Minute)
	ok, err := s.ConditionalUpdate(ctx, j.ID, job.StatePending, job.Patch{
		State:     job.StateProcessing,
		WorkerID:  wid,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateProcessing, got.State)
	assert.Equal(t, wid, got.WorkerID)
	assertTime(t, now, got.UpdatedAt, "updated_at")
	assertTime(t, j.CreatedAt, got.CreatedAt, "created_at")

	next := now.Add(8 * time.Second)
	ok, err = s.ConditionalUpdate(ctx, j.ID, job.StateProcessing, job.Patch{
		State:        job.StatePending,
		NextRunAt:    &next,
		UpdatedAt:    now.Add(time.Second),
		Attempts:     job.Ptr(1),
		LastExitCode: job.Ptr(1),
		LastError:    job.Ptr("exit status 1"),
		Output:       job.Ptr("boom\n"),
	})
	require.NoError(t, err)
	require.True(t, ok)

	got, err = s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, got.State)
	assert.True(t, got.WorkerID.IsNil())
	require.NotNil(t, got.NextRunAt)
	assertTime(t, next, *got.NextRunAt, "next_run_at")
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastExitCode)
	assert.Equal(t, 1, *got.LastExitCode)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "exit status 1", *got.LastError)
	require.NotNil(t, got.Output)
	assert.Equal(t, "boom\n", *got.Output)
}

func testConditionalUpdateRejectsWrongState(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob(0)
	insert(t, s, j)

	ok, err := s.ConditionalUpdate(ctx, j.ID, job.StateProcessing, job.Patch{
		State:     job.StateCompleted,
		UpdatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, got.State)
	assertTime(t, j.UpdatedAt, got.UpdatedAt, "updated_at")
}

func testConditionalUpdateMissingID(t *testing.T, s store.Store) {
	ok, err := s.ConditionalUpdate(context.Background(), id.NewJobID(), job.StatePending, job.Patch{
		State:     job.StateProcessing,
		UpdatedAt: base,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConditionalUpdateKeepsUnsetFields(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob(0)
	j.State = job.StateDead
	j.Attempts = 4
	j.LastExitCode = job.Ptr(2)
	j.LastError = job.Ptr("exit status 2")
	j.Output = job.Ptr("nope")
	insert(t, s, j)

	ok, err := s.ConditionalUpdate(ctx, j.ID, job.StateDead, job.Patch{
		State:     job.StatePending,
		UpdatedAt: base.Add(time.Minute),
		Attempts:  job.Ptr(0),
	})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatePending, got.State)
	assert.Equal(t, 0, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "exit status 2", *got.LastError)
	require.NotNil(t, got.Output)
	assert.Equal(t, "nope", *got.Output)
	require.NotNil(t, got.LastExitCode)
	assert.Equal(t, 2, *got.LastExitCode)
}

func testConcurrentCASSingleWinner(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob(0)
	insert(t, s, j)

	const contenders = 16
	var (
		wins atomic.Int32
		wg   sync.WaitGroup
	)
	errs := make(chan error, contenders)
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConditionalUpdate(ctx, j.ID, job.StatePending, job.Patch{
				State:     job.StateProcessing,
				WorkerID:  id.NewWorkerID(),
				UpdatedAt: base.Add(time.Minute),
			})
			if err != nil {
				errs <- err
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), wins.Load())
}

func testCountByState(t *testing.T, s store.Store) {
	ctx := context.Background()
	p1, p2, d := newJob(0), newJob(time.Second), newJob(2*time.Second)
	d.State = job.StateDead
	d.Attempts = 4
	insert(t, s, p1, p2, d)

	counts, err := s.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[job.StatePending])
	assert.Equal(t, int64(1), counts[job.StateDead])
	assert.Zero(t, counts[job.StateCompleted])
}

// ──────────────────────────────────────────────────
// Cluster store
// ──────────────────────────────────────────────────

func newWorker(startOffset time.Duration) *cluster.Worker {
	return &cluster.Worker{
		ID:        id.NewWorkerID(),
		Hostname:  "host-1",
		PID:       4242,
		State:     cluster.WorkerActive,
		StartedAt: base.Add(startOffset),
		LastSeen:  base.Add(startOffset),
	}
}

func testWorkers(t *testing.T, s store.Store) {
	ctx := context.Background()
	w1, w2 := newWorker(0), newWorker(time.Second)
	require.NoError(t, s.RegisterWorker(ctx, w2))
	require.NoError(t, s.RegisterWorker(ctx, w1))

	got, err := s.GetWorker(ctx, w1.ID)
	require.NoError(t, err)
	assert.Equal(t, w1.ID, got.ID)
	assert.Equal(t, "host-1", got.Hostname)
	assert.Equal(t, 4242, got.PID)
	assert.Equal(t, cluster.WorkerActive, got.State)
	assertTime(t, w1.StartedAt, got.StartedAt, "started_at")

	list, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, w1.ID, list[0].ID)
	assert.Equal(t, w2.ID, list[1].ID)

	seen := base.Add(time.Minute)
	require.NoError(t, s.HeartbeatWorker(ctx, w1.ID, seen))
	got, err = s.GetWorker(ctx, w1.ID)
	require.NoError(t, err)
	assertTime(t, seen, got.LastSeen, "last_seen")

	require.NoError(t, s.MarkDraining(ctx, w1.ID))
	got, err = s.GetWorker(ctx, w1.ID)
	require.NoError(t, err)
	assert.Equal(t, cluster.WorkerDraining, got.State)

	require.NoError(t, s.DeregisterWorker(ctx, w1.ID))
	_, err = s.GetWorker(ctx, w1.ID)
	assert.ErrorIs(t, err, queuectl.ErrWorkerNotFound)
	assert.ErrorIs(t, s.HeartbeatWorker(ctx, w1.ID, seen), queuectl.ErrWorkerNotFound)

	// Deregistering twice is not an error.
	assert.NoError(t, s.DeregisterWorker(ctx, w1.ID))
}

func testReapDeadWorkers(t *testing.T, s store.Store) {
	ctx := context.Background()
	stale, fresh := newWorker(0), newWorker(time.Second)
	require.NoError(t, s.RegisterWorker(ctx, stale))
	require.NoError(t, s.RegisterWorker(ctx, fresh))
	require.NoError(t, s.HeartbeatWorker(ctx, fresh.ID, base.Add(time.Minute)))

	dead, err := s.ReapDeadWorkers(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, stale.ID, dead[0].ID)

	list, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	got := make([]id.WorkerID, 0, len(list))
	for _, w := range list {
		got = append(got, w.ID)
	}
	assert.Equal(t, []id.WorkerID{fresh.ID}, got)
}
