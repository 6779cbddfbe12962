package job

import (
	"fmt"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting to be claimed. A non-nil
	// NextRunAt delays eligibility until that time.
	StatePending State = "pending"
	// StateProcessing means a worker holds the claim and is executing it.
	StateProcessing State = "processing"
	// StateCompleted means the command exited 0.
	StateCompleted State = "completed"
	// StateFailed is accepted by filters and counted by status but never
	// written by the engine.
	StateFailed State = "failed"
	// StateDead means retries are exhausted. Only a DLQ retry revives it.
	StateDead State = "dead"
)

// States lists every state in display order.
var States = []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateDead}

// ParseState validates s as a State. Unknown names wrap
// queuectl.ErrInvalidState.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown job state %q", queuectl.ErrInvalidState, s)
}

// Job is a unit of work wrapping a shell command.
type Job struct {
	ID           id.JobID    `json:"id"`
	Command      string      `json:"command"`
	State        State       `json:"state"`
	Attempts     int         `json:"attempts"`
	MaxRetries   int         `json:"max_retries"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	NextRunAt    *time.Time  `json:"next_run_at"`
	WorkerID     id.WorkerID `json:"worker"`
	LastExitCode *int        `json:"last_exit_code"`
	LastError    *string     `json:"last_error"`
	Output       *string     `json:"output"`
}

// New returns a pending job created at now.
func New(jobID id.JobID, command string, maxRetries int, now time.Time) *Job {
	return &Job{
		ID:         jobID,
		Command:    command,
		State:      StatePending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Eligible reports whether a claim at now may pick the job.
func (j *Job) Eligible(now time.Time) bool {
	return j.State == StatePending && (j.NextRunAt == nil || !j.NextRunAt.After(now))
}

// Clone returns a deep copy so stores can hand out jobs without sharing
// pointers into their own state.
func (j *Job) Clone() *Job {
	c := *j
	if j.NextRunAt != nil {
		t := *j.NextRunAt
		c.NextRunAt = &t
	}
	if j.LastExitCode != nil {
		v := *j.LastExitCode
		c.LastExitCode = &v
	}
	if j.LastError != nil {
		v := *j.LastError
		c.LastError = &v
	}
	if j.Output != nil {
		v := *j.Output
		c.Output = &v
	}
	return &c
}
