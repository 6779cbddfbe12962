package job_test

import (
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

func TestEligible(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	j := job.New(id.NewJobID(), "true", 3, now)

	if !j.Eligible(now) {
		t.Error("fresh pending job should be eligible")
	}

	later := now.Add(time.Minute)
	j.NextRunAt = &later
	if j.Eligible(now) {
		t.Error("job with future next_run_at should not be eligible")
	}
	if !j.Eligible(later) {
		t.Error("job should be eligible exactly at next_run_at")
	}

	j.NextRunAt = nil
	j.State = job.StateProcessing
	if j.Eligible(now) {
		t.Error("processing job should never be eligible")
	}
}

func TestPatchApply_LeavesResultFieldsWhenNil(t *testing.T) {
	now := time.Now().UTC()
	j := job.New(id.NewJobID(), "exit 1", 3, now)
	j.LastError = job.Ptr("exit status 1")
	j.Output = job.Ptr("boom")
	j.Attempts = 2

	job.Patch{
		State:     job.StateProcessing,
		WorkerID:  id.NewWorkerID(),
		UpdatedAt: now.Add(time.Second),
	}.Apply(j)

	if j.State != job.StateProcessing {
		t.Errorf("state = %q, want processing", j.State)
	}
	if j.Attempts != 2 {
		t.Errorf("attempts = %d, want unchanged 2", j.Attempts)
	}
	if j.LastError == nil || *j.LastError != "exit status 1" {
		t.Errorf("last_error should be preserved, got %v", j.LastError)
	}
	if j.Output == nil || *j.Output != "boom" {
		t.Errorf("output should be preserved, got %v", j.Output)
	}
	if j.WorkerID.IsNil() {
		t.Error("worker should be set")
	}
}

func TestPatchApply_ClearsWorkerAndNextRun(t *testing.T) {
	now := time.Now().UTC()
	next := now.Add(time.Minute)
	j := job.New(id.NewJobID(), "true", 3, now)
	j.WorkerID = id.NewWorkerID()
	j.NextRunAt = &next

	job.Patch{State: job.StateCompleted, UpdatedAt: now, Attempts: job.Ptr(1), LastExitCode: job.Ptr(0)}.Apply(j)

	if !j.WorkerID.IsNil() {
		t.Error("worker should be cleared")
	}
	if j.NextRunAt != nil {
		t.Error("next_run_at should be cleared")
	}
	if j.Attempts != 1 || j.LastExitCode == nil || *j.LastExitCode != 0 {
		t.Errorf("attempts/exit code not applied: %d %v", j.Attempts, j.LastExitCode)
	}
}

func TestClone_IsDeep(t *testing.T) {
	next := time.Now()
	j := &job.Job{ID: id.NewJobID(), NextRunAt: &next, Output: job.Ptr("a")}
	c := j.Clone()
	*c.Output = "b"
	*c.NextRunAt = next.Add(time.Hour)

	if *j.Output != "a" || !j.NextRunAt.Equal(next) {
		t.Error("clone shares pointers with original")
	}
}

func TestParseState(t *testing.T) {
	for _, st := range job.States {
		got, err := job.ParseState(string(st))
		if err != nil || got != st {
			t.Errorf("ParseState(%q) = %q, %v", st, got, err)
		}
	}
	if _, err := job.ParseState("running"); !errors.Is(err, queuectl.ErrInvalidState) {
		t.Errorf("ParseState(running) err = %v, want ErrInvalidState", err)
	}
}

func jobsSeq(jobs ...*job.Job) iter.Seq2[*job.Job, error] {
	return func(yield func(*job.Job, error) bool) {
		for _, j := range jobs {
			if !yield(j, nil) {
				return
			}
		}
	}
}

func TestSinglePass(t *testing.T) {
	a, b := &job.Job{ID: id.NewJobID()}, &job.Job{ID: id.NewJobID()}
	seq := job.SinglePass(jobsSeq(a, b))

	got, err := job.Collect(seq)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(got))
	}

	_, err = job.Collect(seq)
	if !errors.Is(err, queuectl.ErrSequenceConsumed) {
		t.Fatalf("second pass: expected ErrSequenceConsumed, got %v", err)
	}
}

func TestFirst(t *testing.T) {
	a := &job.Job{ID: id.NewJobID()}
	got, err := job.First(jobsSeq(a, &job.Job{}))
	if err != nil || got != a {
		t.Fatalf("First = %v, %v", got, err)
	}

	got, err = job.First(jobsSeq())
	if err != nil || got != nil {
		t.Fatalf("First(empty) = %v, %v", got, err)
	}

	want := errors.New("boom")
	if _, err := job.First(job.Fail(want)); !errors.Is(err, want) {
		t.Fatalf("First(Fail) err = %v", err)
	}
}
