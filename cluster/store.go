package cluster

import (
	"context"
	"time"

	"github.com/xraph/queuectl/id"
)

// Store defines the persistence contract for worker liveness records.
type Store interface {
	// RegisterWorker adds a worker record, replacing any record with the
	// same ID.
	RegisterWorker(ctx context.Context, w *Worker) error

	// DeregisterWorker removes a worker record. Removing an unknown id is
	// not an error.
	DeregisterWorker(ctx context.Context, workerID id.WorkerID) error

	// HeartbeatWorker sets the record's LastSeen to at. It returns
	// queuectl.ErrWorkerNotFound when the record is gone.
	HeartbeatWorker(ctx context.Context, workerID id.WorkerID, at time.Time) error

	// GetWorker returns one record or queuectl.ErrWorkerNotFound.
	GetWorker(ctx context.Context, workerID id.WorkerID) (*Worker, error)

	// ListWorkers returns all records ordered by StartedAt.
	ListWorkers(ctx context.Context) ([]*Worker, error)

	// MarkDraining sets the record's state to draining.
	MarkDraining(ctx context.Context, workerID id.WorkerID) error

	// ReapDeadWorkers deletes and returns records whose LastSeen is
	// before cutoff.
	ReapDeadWorkers(ctx context.Context, cutoff time.Time) ([]*Worker, error)
}
