package worker

import (
	"sync"

	"github.com/xraph/queuectl/id"
)

// State is the position of a worker goroutine in its loop.
type State string

const (
	StateIdle       State = "idle"
	StateClaiming   State = "claiming"
	StateExecuting  State = "executing"
	StateFinalizing State = "finalizing"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
)

// Info is a point-in-time snapshot of one worker goroutine.
type Info struct {
	ID        id.WorkerID `json:"id"`
	State     State       `json:"state"`
	JobID     id.JobID    `json:"job_id,omitempty"`
	Processed int64       `json:"processed"`
}

// handle is the pool's private view of one worker goroutine.
type handle struct {
	id id.WorkerID

	mu        sync.Mutex
	state     State
	jobID     id.JobID
	processed int64

	drainOnce sync.Once
	drain     chan struct{}
}

func newHandle() *handle {
	return &handle{
		id:    id.NewWorkerID(),
		state: StateIdle,
		drain: make(chan struct{}),
	}
}

func (h *handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *handle) begin(jobID id.JobID) {
	h.mu.Lock()
	h.jobID = jobID
	h.state = StateExecuting
	h.mu.Unlock()
}

func (h *handle) finish() {
	h.mu.Lock()
	h.jobID = id.Nil
	h.processed++
	h.state = StateIdle
	h.mu.Unlock()
}

func (h *handle) info() Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Info{ID: h.id, State: h.state, JobID: h.jobID, Processed: h.processed}
}

// requestDrain asks this worker to exit after its current iteration.
func (h *handle) requestDrain() {
	h.drainOnce.Do(func() { close(h.drain) })
}
