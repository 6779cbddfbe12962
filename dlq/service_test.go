package dlq_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/dlq"
	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/store/memory"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newService(s job.Store, extensions ...ext.Extension) *dlq.Service {
	reg := ext.NewRegistry(slog.Default())
	for _, e := range extensions {
		reg.Register(e)
	}
	clock := queuectl.ClockFunc(func() time.Time { return t0.Add(time.Hour) })
	return dlq.NewService(s, reg, clock)
}

func insertDead(t *testing.T, s *memory.Store, createdAt time.Time) *job.Job {
	t.Helper()
	j := job.New(id.NewJobID(), "exit 1", 3, createdAt)
	j.State = job.StateDead
	j.Attempts = 4
	j.LastExitCode = job.Ptr(1)
	j.LastError = job.Ptr("exit status 1")
	j.Output = job.Ptr("boom")
	if err := s.InsertJob(context.Background(), j); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	return j
}

type requeueTracker struct{ n int }

func (r *requeueTracker) Name() string { return "requeue" }

func (r *requeueTracker) OnJobRequeued(context.Context, *job.Job) error {
	r.n++
	return nil
}

func TestService_ListAndCount(t *testing.T) {
	s := memory.New()
	svc := newService(s)
	ctx := context.Background()

	older := insertDead(t, s, t0)
	newer := insertDead(t, s, t0.Add(time.Second))
	if err := s.InsertJob(ctx, job.New(id.NewJobID(), "true", 3, t0)); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	dead, err := svc.List(ctx, job.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dead) != 2 {
		t.Fatalf("expected 2 dead jobs, got %d", len(dead))
	}
	if dead[0].ID.String() != newer.ID.String() || dead[1].ID.String() != older.ID.String() {
		t.Errorf("expected newest first, got %s, %s", dead[0].ID, dead[1].ID)
	}

	n, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count: want 2, got %d", n)
	}
}

func TestService_Retry_ResetsJob(t *testing.T) {
	s := memory.New()
	tracker := &requeueTracker{}
	svc := newService(s, tracker)
	ctx := context.Background()
	dead := insertDead(t, s, t0)

	j, err := svc.Retry(ctx, dead.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if j.State != job.StatePending {
		t.Errorf("returned state: want pending, got %s", j.State)
	}

	got, err := s.GetJob(ctx, dead.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.State != job.StatePending {
		t.Errorf("state: want pending, got %s", got.State)
	}
	if got.Attempts != 0 {
		t.Errorf("attempts: want 0, got %d", got.Attempts)
	}
	if got.NextRunAt != nil {
		t.Errorf("next_run_at: want nil, got %v", got.NextRunAt)
	}
	if !got.WorkerID.IsNil() {
		t.Errorf("worker: want nil, got %s", got.WorkerID)
	}
	if !got.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("updated_at: want clock time, got %s", got.UpdatedAt)
	}
	if got.Command != "exit 1" || got.MaxRetries != 3 {
		t.Errorf("command and max_retries must be kept: %+v", got)
	}
	if got.LastError == nil || *got.LastError != "exit status 1" {
		t.Errorf("last_error must be kept, got %v", got.LastError)
	}
	if got.Output == nil || *got.Output != "boom" {
		t.Errorf("output must be kept, got %v", got.Output)
	}
	if tracker.n != 1 {
		t.Errorf("expected one requeue event, got %d", tracker.n)
	}
}

func TestService_Retry_UnknownID(t *testing.T) {
	svc := newService(memory.New())
	_, err := svc.Retry(context.Background(), id.NewJobID())
	if !errors.Is(err, queuectl.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestService_Retry_NotDead(t *testing.T) {
	s := memory.New()
	svc := newService(s)
	ctx := context.Background()

	completed := job.New(id.NewJobID(), "true", 3, t0)
	completed.State = job.StateCompleted
	completed.Attempts = 1
	if err := s.InsertJob(ctx, completed); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	_, err := svc.Retry(ctx, completed.ID)
	if !errors.Is(err, queuectl.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	got, _ := s.GetJob(ctx, completed.ID)
	if got.State != job.StateCompleted || got.Attempts != 1 {
		t.Fatalf("rejected retry must not mutate the job: %+v", got)
	}
}

func TestService_Retry_Twice(t *testing.T) {
	s := memory.New()
	svc := newService(s)
	ctx := context.Background()
	dead := insertDead(t, s, t0)

	if _, err := svc.Retry(ctx, dead.ID); err != nil {
		t.Fatalf("first Retry: %v", err)
	}
	if _, err := svc.Retry(ctx, dead.ID); !errors.Is(err, queuectl.ErrInvalidState) {
		t.Fatalf("second Retry: expected ErrInvalidState, got %v", err)
	}
}
