package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/id"
)

// setIfExistsScript sets one hash field only when the hash exists, so a
// late heartbeat cannot resurrect a deregistered worker.
var setIfExistsScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// RegisterWorker adds a worker to the registry, replacing any record with
// the same ID.
func (s *Store) RegisterWorker(ctx context.Context, w *cluster.Worker) error {
	wID := w.ID.String()
	key := workerKey(wID)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, workerToMap(w))
	pipe.ZAdd(ctx, workersKey, goredis.Z{Score: score(w.StartedAt), Member: wID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queuectl/redis: register worker: %w", err)
	}
	return nil
}

// DeregisterWorker removes a worker from the registry.
func (s *Store) DeregisterWorker(ctx context.Context, workerID id.WorkerID) error {
	wID := workerID.String()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, workerKey(wID))
	pipe.ZRem(ctx, workersKey, wID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queuectl/redis: deregister worker: %w", err)
	}
	return nil
}

// HeartbeatWorker updates the last-seen timestamp for a worker.
func (s *Store) HeartbeatWorker(ctx context.Context, workerID id.WorkerID, at time.Time) error {
	return s.setWorkerField(ctx, workerID, "last_seen", formatTime(at), "heartbeat worker")
}

// MarkDraining sets the worker's state to draining.
func (s *Store) MarkDraining(ctx context.Context, workerID id.WorkerID) error {
	return s.setWorkerField(ctx, workerID, "state", string(cluster.WorkerDraining), "mark draining")
}

func (s *Store) setWorkerField(ctx context.Context, workerID id.WorkerID, field, value, op string) error {
	n, err := setIfExistsScript.Run(ctx, s.client, []string{workerKey(workerID.String())}, field, value).Int()
	if err != nil {
		return fmt.Errorf("queuectl/redis: %s: %w", op, err)
	}
	if n == 0 {
		return queuectl.ErrWorkerNotFound
	}
	return nil
}

// GetWorker returns one worker record.
func (s *Store) GetWorker(ctx context.Context, workerID id.WorkerID) (*cluster.Worker, error) {
	vals, err := s.client.HGetAll(ctx, workerKey(workerID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("queuectl/redis: get worker: %w", err)
	}
	if len(vals) == 0 {
		return nil, queuectl.ErrWorkerNotFound
	}
	return mapToWorker(vals)
}

// ListWorkers returns all registered workers ordered by start time.
func (s *Store) ListWorkers(ctx context.Context) ([]*cluster.Worker, error) {
	ids, err := s.client.ZRange(ctx, workersKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("queuectl/redis: list workers: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, wID := range ids {
		cmds[i] = pipe.HGetAll(ctx, workerKey(wID))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("queuectl/redis: list workers: %w", err)
		}
	}

	workers := make([]*cluster.Worker, 0, len(ids))
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		w, err := mapToWorker(vals)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	cluster.SortByStart(workers)
	return workers, nil
}

// ReapDeadWorkers deletes and returns workers last seen before cutoff.
func (s *Store) ReapDeadWorkers(ctx context.Context, cutoff time.Time) ([]*cluster.Worker, error) {
	workers, err := s.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}

	var dead []*cluster.Worker
	pipe := s.client.TxPipeline()
	for _, w := range workers {
		if !w.LastSeen.Before(cutoff) {
			continue
		}
		wID := w.ID.String()
		pipe.Del(ctx, workerKey(wID))
		pipe.ZRem(ctx, workersKey, wID)
		dead = append(dead, w)
	}
	if len(dead) == 0 {
		return nil, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queuectl/redis: reap workers: %w", err)
	}
	for _, w := range dead {
		s.logger.Debug("reaped worker record", "worker_id", w.ID.String())
	}
	return dead, nil
}

// ── helpers ──

func workerToMap(w *cluster.Worker) map[string]any {
	return map[string]any{
		"id":         w.ID.String(),
		"hostname":   w.Hostname,
		"pid":        strconv.Itoa(w.PID),
		"state":      string(w.State),
		"started_at": formatTime(w.StartedAt),
		"last_seen":  formatTime(w.LastSeen),
	}
}

func mapToWorker(m map[string]string) (*cluster.Worker, error) {
	wID, err := id.ParseWorkerID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("queuectl/redis: parse worker id: %w", err)
	}
	pid, err := strconv.Atoi(m["pid"])
	if err != nil {
		return nil, fmt.Errorf("queuectl/redis: parse pid: %w", err)
	}
	startedAt, err := parseTime("started_at", m["started_at"])
	if err != nil {
		return nil, err
	}
	lastSeen, err := parseTime("last_seen", m["last_seen"])
	if err != nil {
		return nil, err
	}

	return &cluster.Worker{
		ID:        wID,
		Hostname:  m["hostname"],
		PID:       pid,
		State:     cluster.WorkerState(m["state"]),
		StartedAt: startedAt,
		LastSeen:  lastSeen,
	}, nil
}
