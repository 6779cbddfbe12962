package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/runner"
	"github.com/xraph/queuectl/store/memory"
	"github.com/xraph/queuectl/worker"
)

// claimOne claims the next eligible job or fails the test.
func claimOne(t *testing.T, s *memory.Store, clock *fakeClock) *job.Job {
	t.Helper()
	j, err := worker.Claim(context.Background(), s, id.NewWorkerID(), clock.Now())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if j == nil {
		t.Fatal("expected an eligible job")
	}
	return j
}

func TestExecutor_Success(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	tracker := &trackingExt{}
	extensions := ext.NewRegistry(slog.Default())
	extensions.Register(tracker)
	e := newExecutor(s, exitWith(0, "hi\n"), clock, extensions)

	queued := enqueue(t, s, "echo hi", 3, clock.Now())
	j := claimOne(t, s, clock)
	clock.Advance(time.Second)

	if err := e.Execute(context.Background(), j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := mustGet(t, s, queued.ID)
	if got.State != job.StateCompleted {
		t.Errorf("state: want completed, got %s", got.State)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts: want 1, got %d", got.Attempts)
	}
	if got.LastExitCode == nil || *got.LastExitCode != 0 {
		t.Errorf("last_exit_code: want 0, got %v", got.LastExitCode)
	}
	if got.Output == nil || *got.Output != "hi\n" {
		t.Errorf("output: want %q, got %v", "hi\n", got.Output)
	}
	if !got.WorkerID.IsNil() {
		t.Errorf("worker should be cleared, got %s", got.WorkerID)
	}
	if got.NextRunAt != nil {
		t.Errorf("next_run_at should be nil, got %v", got.NextRunAt)
	}
	if !got.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updated_at: want %s, got %s", clock.Now(), got.UpdatedAt)
	}
	if tracker.count("completed") != 1 {
		t.Errorf("expected one completed event, got %v", tracker.snapshot())
	}
}

func TestExecutor_FailureSchedulesRetry(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	e := newExecutor(s, exitWith(1, "boom\n"), clock, nil)

	queued := enqueue(t, s, "exit 1", 3, clock.Now())
	j := claimOne(t, s, clock)

	if err := e.Execute(context.Background(), j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := mustGet(t, s, queued.ID)
	if got.State != job.StatePending {
		t.Fatalf("state: want pending, got %s", got.State)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts: want 1, got %d", got.Attempts)
	}
	want := clock.Now().Add(2 * time.Second)
	if got.NextRunAt == nil || !got.NextRunAt.Equal(want) {
		t.Errorf("next_run_at: want %s, got %v", want, got.NextRunAt)
	}
	if got.LastError == nil || *got.LastError != "exit status 1" {
		t.Errorf("last_error: want %q, got %v", "exit status 1", got.LastError)
	}
	if got.LastExitCode == nil || *got.LastExitCode != 1 {
		t.Errorf("last_exit_code: want 1, got %v", got.LastExitCode)
	}
	if !got.WorkerID.IsNil() {
		t.Errorf("worker should be cleared, got %s", got.WorkerID)
	}
}

func TestExecutor_BackoffGrowsWithAttempts(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	e := newExecutor(s, exitWith(1, ""), clock, nil)
	queued := enqueue(t, s, "exit 1", 5, clock.Now())

	wantDelays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, wantDelay := range wantDelays {
		j := claimOne(t, s, clock)
		if err := e.Execute(context.Background(), j); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		got := mustGet(t, s, queued.ID)
		if got.NextRunAt == nil || !got.NextRunAt.Equal(clock.Now().Add(wantDelay)) {
			t.Fatalf("attempt %d: want next_run_at now+%s, got %v", i+1, wantDelay, got.NextRunAt)
		}
		clock.Advance(wantDelay)
	}
}

func TestExecutor_DeadAfterMaxRetries(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	tracker := &trackingExt{}
	extensions := ext.NewRegistry(slog.Default())
	extensions.Register(tracker)
	e := newExecutor(s, exitWith(1, ""), clock, extensions)

	queued := enqueue(t, s, "exit 1", 3, clock.Now())

	executions := 0
	for {
		j, err := worker.Claim(context.Background(), s, id.NewWorkerID(), clock.Now())
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if j == nil {
			got := mustGet(t, s, queued.ID)
			if got.State == job.StateDead {
				break
			}
			// Not yet eligible: jump to next_run_at.
			clock.Advance(got.NextRunAt.Sub(clock.Now()))
			continue
		}
		if err := e.Execute(context.Background(), j); err != nil {
			t.Fatalf("execute: %v", err)
		}
		executions++
		if executions > 10 {
			t.Fatal("job never reached dead")
		}
	}

	got := mustGet(t, s, queued.ID)
	if executions != 4 {
		t.Errorf("executions: want 4, got %d", executions)
	}
	if got.Attempts != 4 {
		t.Errorf("attempts: want 4, got %d", got.Attempts)
	}
	if got.NextRunAt != nil {
		t.Errorf("dead job must have nil next_run_at, got %v", got.NextRunAt)
	}
	if tracker.count("retrying") != 3 || tracker.count("dead") != 1 {
		t.Errorf("unexpected events: %v", tracker.snapshot())
	}
}

func TestExecutor_RunnerErrorMapsToMinusOne(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	startErr := &runner.Error{Command: "nope", Err: errors.New("exec: \"sh\": executable file not found in $PATH")}
	run := runner.Func(func(context.Context, string) (runner.Result, error) {
		return runner.Result{ExitCode: -1}, startErr
	})
	e := newExecutor(s, run, clock, nil)

	queued := enqueue(t, s, "nope", 3, clock.Now())
	j := claimOne(t, s, clock)
	if err := e.Execute(context.Background(), j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := mustGet(t, s, queued.ID)
	if got.LastExitCode == nil || *got.LastExitCode != -1 {
		t.Errorf("last_exit_code: want -1, got %v", got.LastExitCode)
	}
	if got.LastError == nil || *got.LastError != startErr.Error() {
		t.Errorf("last_error: want %q, got %v", startErr.Error(), got.LastError)
	}
	if got.State != job.StatePending {
		t.Errorf("state: want pending, got %s", got.State)
	}
}

func TestExecutor_PanicIsRecovered(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	run := runner.Func(func(context.Context, string) (runner.Result, error) {
		panic("kaboom")
	})
	e := newExecutor(s, run, clock, nil)

	queued := enqueue(t, s, "echo hi", 3, clock.Now())
	j := claimOne(t, s, clock)
	if err := e.Execute(context.Background(), j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := mustGet(t, s, queued.ID)
	if got.LastError == nil || !strings.HasPrefix(*got.LastError, "panic: kaboom") {
		t.Errorf("last_error: want panic message, got %v", got.LastError)
	}
	if got.LastExitCode == nil || *got.LastExitCode != -1 {
		t.Errorf("last_exit_code: want -1, got %v", got.LastExitCode)
	}
}

func TestExecutor_FinalizeRejectedIsConsistencyFault(t *testing.T) {
	s := memory.New()
	clock := newFakeClock()
	e := newExecutor(s, exitWith(0, ""), clock, nil)

	queued := enqueue(t, s, "echo hi", 3, clock.Now())
	j := claimOne(t, s, clock)

	// Someone else moves the job out of processing.
	ok, err := s.ConditionalUpdate(context.Background(), queued.ID, job.StateProcessing, job.Patch{
		State:     job.StateDead,
		UpdatedAt: clock.Now(),
	})
	if err != nil || !ok {
		t.Fatalf("setup update failed: ok=%v err=%v", ok, err)
	}

	err = e.Execute(context.Background(), j)
	if !errors.Is(err, queuectl.ErrConsistencyFault) {
		t.Fatalf("expected ErrConsistencyFault, got %v", err)
	}
	if got := mustGet(t, s, queued.ID); got.State != job.StateDead {
		t.Fatalf("rejected finalize must not write, state=%s", got.State)
	}
}

func TestOutcome_ExitCode(t *testing.T) {
	tests := []struct {
		name string
		out  worker.Outcome
		want int
	}{
		{"success", worker.Outcome{}, 0},
		{"exit", worker.Outcome{Err: &worker.ExitError{Code: 3}}, 3},
		{"runner", worker.Outcome{Err: &runner.Error{Err: errors.New("x")}}, -1},
		{"middleware", worker.Outcome{Err: errors.New("rejected")}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.out.ExitCode(); got != tt.want {
				t.Errorf("want %d, got %d", tt.want, got)
			}
		})
	}
}

func TestExitError_Message(t *testing.T) {
	if got := (&worker.ExitError{Code: 2}).Error(); got != "exit status 2" {
		t.Errorf("want %q, got %q", "exit status 2", got)
	}
	if got := (&worker.ExitError{Code: -1, Status: "signal: killed"}).Error(); got != "signal: killed" {
		t.Errorf("want %q, got %q", "signal: killed", got)
	}
}
