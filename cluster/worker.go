package cluster

import (
	"cmp"
	"slices"
	"time"

	"github.com/xraph/queuectl/id"
)

// WorkerState represents the lifecycle state of a worker record.
type WorkerState string

const (
	// WorkerActive means the worker is polling for jobs.
	WorkerActive WorkerState = "active"
	// WorkerDraining means a stop was requested. The worker finishes its
	// in-flight job and then deregisters.
	WorkerDraining WorkerState = "draining"
)

// Worker is the persisted liveness record of one worker goroutine.
type Worker struct {
	ID        id.WorkerID `json:"id"`
	Hostname  string      `json:"hostname"`
	PID       int         `json:"pid"`
	State     WorkerState `json:"state"`
	StartedAt time.Time   `json:"started_at"`
	LastSeen  time.Time   `json:"last_seen"`
}

// Stale reports whether the record has not been seen within ttl of now.
func (w *Worker) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(w.LastSeen) > ttl
}

// SortByStart orders records by StartedAt, then ID.
func SortByStart(ws []*Worker) {
	slices.SortFunc(ws, func(a, b *Worker) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
