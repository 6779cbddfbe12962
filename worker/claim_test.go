package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/store/memory"
	"github.com/xraph/queuectl/worker"
)

func TestClaim_EmptyStore(t *testing.T) {
	s := memory.New()
	j, err := worker.Claim(context.Background(), s, id.NewWorkerID(), time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != nil {
		t.Fatalf("expected no job, got %s", j.ID)
	}
}

func TestClaim_SetsWorkerAndState(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	queued := enqueue(t, s, "echo hi", 3, clock.Now())
	wid := id.NewWorkerID()

	clock.Advance(time.Second)
	j, err := worker.Claim(context.Background(), s, wid, clock.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j == nil || j.ID.String() != queued.ID.String() {
		t.Fatalf("expected to claim %s, got %v", queued.ID, j)
	}

	stored := mustGet(t, s, queued.ID)
	if stored.State != job.StateProcessing {
		t.Errorf("state: want processing, got %s", stored.State)
	}
	if stored.WorkerID.String() != wid.String() {
		t.Errorf("worker: want %s, got %s", wid, stored.WorkerID)
	}
	if stored.NextRunAt != nil {
		t.Errorf("next_run_at: want nil, got %v", stored.NextRunAt)
	}
	if !stored.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updated_at: want %s, got %s", clock.Now(), stored.UpdatedAt)
	}
	if stored.Attempts != 0 {
		t.Errorf("attempts: claim must not change attempts, got %d", stored.Attempts)
	}
}

func TestClaim_FIFO(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	start := clock.Now()

	third := enqueue(t, s, "echo 3", 3, start.Add(2*time.Second))
	first := enqueue(t, s, "echo 1", 3, start)
	second := enqueue(t, s, "echo 2", 3, start.Add(time.Second))

	clock.Advance(time.Minute)
	wid := id.NewWorkerID()
	for _, want := range []*job.Job{first, second, third} {
		got, err := worker.Claim(context.Background(), s, wid, clock.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.ID.String() != want.ID.String() {
			t.Fatalf("expected %s (%s), got %v", want.ID, want.Command, got)
		}
	}
}

func TestClaim_SkipsFutureNextRunAt(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()

	j := job.New(id.NewJobID(), "echo later", 3, clock.Now())
	j.NextRunAt = job.Ptr(clock.Now().Add(10 * time.Second))
	if err := s.InsertJob(context.Background(), j); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	before := mustGet(t, s, j.ID)

	// Repeated misses leave the job untouched.
	for range 3 {
		got, err := worker.Claim(context.Background(), s, id.NewWorkerID(), clock.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Fatalf("claimed a job that is not yet eligible")
		}
	}
	after := mustGet(t, s, j.ID)
	if after.State != before.State || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("claim miss mutated the job: %+v", after)
	}

	clock.Advance(10 * time.Second)
	got, err := worker.Claim(context.Background(), s, id.NewWorkerID(), clock.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected job to be eligible at next_run_at")
	}
}

func TestClaim_ConcurrentNoDoubleClaim(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	const jobs = 50
	for i := range jobs {
		enqueue(t, s, "true", 3, clock.Now().Add(time.Duration(i)*time.Millisecond))
	}
	clock.Advance(time.Minute)

	var (
		mu      sync.Mutex
		claimed = make(map[string]string)
		dupes   []string
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wid := id.NewWorkerID()
			for {
				j, err := worker.Claim(context.Background(), s, wid, clock.Now())
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if j == nil {
					counts, _ := s.CountByState(context.Background())
					if counts[job.StatePending] == 0 {
						return
					}
					continue
				}
				mu.Lock()
				if prev, ok := claimed[j.ID.String()]; ok {
					dupes = append(dupes, j.ID.String()+" by "+prev+" and "+wid.String())
				}
				claimed[j.ID.String()] = wid.String()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(dupes) > 0 {
		t.Fatalf("jobs claimed twice: %v", dupes)
	}
	if len(claimed) != jobs {
		t.Fatalf("expected %d claims, got %d", jobs, len(claimed))
	}
}

// lostRaceStore rejects the first conditional update, as if another
// worker had claimed the candidate between the select and the write.
type lostRaceStore struct {
	*memory.Store

	mu    sync.Mutex
	calls int
}

func (s *lostRaceStore) ConditionalUpdate(ctx context.Context, jobID id.JobID, expected job.State, p job.Patch) (bool, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if first {
		return false, nil
	}
	return s.Store.ConditionalUpdate(ctx, jobID, expected, p)
}

func TestClaim_LostRaceDoesNotReselect(t *testing.T) {
	mem := memory.New()
	clock := newFakeClock()
	first := enqueue(t, mem, "echo one", 3, clock.Now())
	clock.Advance(time.Second)
	second := enqueue(t, mem, "echo two", 3, clock.Now())
	s := &lostRaceStore{Store: mem}

	clock.Advance(time.Second)
	j, err := worker.Claim(context.Background(), s, id.NewWorkerID(), clock.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j != nil {
		t.Fatalf("expected no job after a lost race, got %s", j.ID)
	}
	if s.calls != 1 {
		t.Errorf("conditional updates: want 1, got %d", s.calls)
	}

	for _, queued := range []*job.Job{first, second} {
		stored := mustGet(t, mem, queued.ID)
		if stored.State != job.StatePending {
			t.Errorf("%s state: want pending, got %s", queued.Command, stored.State)
		}
		if !stored.WorkerID.IsNil() {
			t.Errorf("%s worker: want none, got %s", queued.Command, stored.WorkerID)
		}
	}

	// The next round claims the oldest job normally.
	j, err = worker.Claim(context.Background(), s, id.NewWorkerID(), clock.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j == nil || j.ID.String() != first.ID.String() {
		t.Fatalf("expected to claim %s on the next round, got %v", first.ID, j)
	}
}
