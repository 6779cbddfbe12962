package worker_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/queuectl/backoff"
	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/middleware"
	"github.com/xraph/queuectl/runner"
	"github.com/xraph/queuectl/store/memory"
	"github.com/xraph/queuectl/worker"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// exitWith is a runner that always exits with code.
func exitWith(code int, output string) runner.Runner {
	return runner.Func(func(context.Context, string) (runner.Result, error) {
		status := ""
		if code != 0 {
			status = fmt.Sprintf("exit status %d", code)
		}
		return runner.Result{ExitCode: code, Status: status, Output: output}, nil
	})
}

func newExecutor(s job.Store, run runner.Runner, clock *fakeClock, extensions *ext.Registry) *worker.Executor {
	logger := slog.Default()
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}
	return worker.NewExecutor(s, run, extensions, backoff.NewPower(2), clock, logger,
		middleware.Recover(logger),
	)
}

func enqueue(t *testing.T, s *memory.Store, command string, maxRetries int, createdAt time.Time) *job.Job {
	t.Helper()
	j := job.New(id.NewJobID(), command, maxRetries, createdAt)
	if err := s.InsertJob(context.Background(), j); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	return j
}

func mustGet(t *testing.T, s *memory.Store, jobID id.JobID) *job.Job {
	t.Helper()
	j, err := s.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	return j
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

// trackingExt records lifecycle calls.
type trackingExt struct {
	mu    sync.Mutex
	calls []string
}

func (e *trackingExt) Name() string { return "tracker" }

func (e *trackingExt) record(s string) {
	e.mu.Lock()
	e.calls = append(e.calls, s)
	e.mu.Unlock()
}

func (e *trackingExt) OnJobStarted(context.Context, *job.Job) error {
	e.record("started")
	return nil
}

func (e *trackingExt) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	e.record("completed")
	return nil
}

func (e *trackingExt) OnJobRetrying(context.Context, *job.Job, int, time.Time) error {
	e.record("retrying")
	return nil
}

func (e *trackingExt) OnJobDead(context.Context, *job.Job, error) error {
	e.record("dead")
	return nil
}

func (e *trackingExt) OnWorkerStarted(context.Context, id.WorkerID) error {
	e.record("worker_started")
	return nil
}

func (e *trackingExt) OnWorkerStopped(context.Context, id.WorkerID) error {
	e.record("worker_stopped")
	return nil
}

func (e *trackingExt) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *trackingExt) count(s string) int {
	n := 0
	for _, c := range e.snapshot() {
		if c == s {
			n++
		}
	}
	return n
}
