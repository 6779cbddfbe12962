package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/id"
)

type workerModel struct {
	ID        string    `bson:"_id"`
	Hostname  string    `bson:"hostname"`
	PID       int       `bson:"pid"`
	State     string    `bson:"state"`
	StartedAt time.Time `bson:"started_at"`
	LastSeen  time.Time `bson:"last_seen"`
}

func toWorkerModel(w *cluster.Worker) *workerModel {
	return &workerModel{
		ID:        w.ID.String(),
		Hostname:  w.Hostname,
		PID:       w.PID,
		State:     string(w.State),
		StartedAt: w.StartedAt.UTC(),
		LastSeen:  w.LastSeen.UTC(),
	}
}

func fromWorkerModel(m *workerModel) (*cluster.Worker, error) {
	wID, err := id.ParseWorkerID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("queuectl/mongo: parse worker id: %w", err)
	}
	return &cluster.Worker{
		ID:        wID,
		Hostname:  m.Hostname,
		PID:       m.PID,
		State:     cluster.WorkerState(m.State),
		StartedAt: m.StartedAt.UTC(),
		LastSeen:  m.LastSeen.UTC(),
	}, nil
}

// RegisterWorker adds a worker to the registry. Uses upsert to handle
// re-registration.
func (s *Store) RegisterWorker(ctx context.Context, w *cluster.Worker) error {
	m := toWorkerModel(w)
	_, err := s.db.Collection(colWorkers).ReplaceOne(ctx,
		bson.M{"_id": m.ID}, m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("queuectl/mongo: register worker: %w", err)
	}
	return nil
}

// DeregisterWorker removes a worker from the registry.
func (s *Store) DeregisterWorker(ctx context.Context, workerID id.WorkerID) error {
	_, err := s.db.Collection(colWorkers).DeleteOne(ctx, bson.M{"_id": workerID.String()})
	if err != nil {
		return fmt.Errorf("queuectl/mongo: deregister worker: %w", err)
	}
	return nil
}

// HeartbeatWorker updates the last-seen timestamp for a worker.
func (s *Store) HeartbeatWorker(ctx context.Context, workerID id.WorkerID, at time.Time) error {
	return s.updateWorker(ctx, workerID, bson.M{"last_seen": at.UTC()}, "heartbeat worker")
}

// MarkDraining sets the worker's state to draining.
func (s *Store) MarkDraining(ctx context.Context, workerID id.WorkerID) error {
	return s.updateWorker(ctx, workerID, bson.M{"state": string(cluster.WorkerDraining)}, "mark draining")
}

func (s *Store) updateWorker(ctx context.Context, workerID id.WorkerID, set bson.M, op string) error {
	res, err := s.db.Collection(colWorkers).UpdateOne(ctx,
		bson.M{"_id": workerID.String()},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("queuectl/mongo: %s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return queuectl.ErrWorkerNotFound
	}
	return nil
}

// GetWorker returns one worker record.
func (s *Store) GetWorker(ctx context.Context, workerID id.WorkerID) (*cluster.Worker, error) {
	var m workerModel
	err := s.db.Collection(colWorkers).FindOne(ctx, bson.M{"_id": workerID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, queuectl.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("queuectl/mongo: get worker: %w", err)
	}
	return fromWorkerModel(&m)
}

// ListWorkers returns all registered workers ordered by start time.
func (s *Store) ListWorkers(ctx context.Context) ([]*cluster.Worker, error) {
	return s.findWorkers(ctx, bson.M{})
}

// ReapDeadWorkers deletes and returns workers last seen before cutoff.
func (s *Store) ReapDeadWorkers(ctx context.Context, cutoff time.Time) ([]*cluster.Worker, error) {
	filter := bson.M{"last_seen": bson.M{"$lt": cutoff.UTC()}}

	dead, err := s.findWorkers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(dead) == 0 {
		return nil, nil
	}

	ids := make(bson.A, 0, len(dead))
	for _, w := range dead {
		ids = append(ids, w.ID.String())
	}
	// Keep the cutoff in the delete so a record heartbeating in between
	// survives.
	_, err = s.db.Collection(colWorkers).DeleteMany(ctx, bson.M{
		"_id":       bson.M{"$in": ids},
		"last_seen": bson.M{"$lt": cutoff.UTC()},
	})
	if err != nil {
		return nil, fmt.Errorf("queuectl/mongo: reap workers: %w", err)
	}
	return dead, nil
}

func (s *Store) findWorkers(ctx context.Context, filter bson.M) ([]*cluster.Worker, error) {
	findOpts := options.Find().SetSort(bson.D{
		{Key: "started_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := s.db.Collection(colWorkers).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("queuectl/mongo: list workers: %w", err)
	}
	defer cursor.Close(ctx)

	var models []workerModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("queuectl/mongo: list workers decode: %w", err)
	}

	workers := make([]*cluster.Worker, 0, len(models))
	for i := range models {
		w, err := fromWorkerModel(&models[i])
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}
