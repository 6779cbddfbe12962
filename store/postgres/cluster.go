package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/id"
)

const workerColumns = `id, hostname, pid, state, started_at, last_seen`

// RegisterWorker adds a worker record, replacing any record with the
// same ID.
func (s *Store) RegisterWorker(ctx context.Context, w *cluster.Worker) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queuectl_workers (`+workerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			pid = EXCLUDED.pid,
			state = EXCLUDED.state,
			started_at = EXCLUDED.started_at,
			last_seen = EXCLUDED.last_seen`,
		w.ID.String(), w.Hostname, w.PID, string(w.State), w.StartedAt.UTC(), w.LastSeen.UTC(),
	)
	if err != nil {
		return fmt.Errorf("queuectl/postgres: register worker: %w", err)
	}
	return nil
}

// DeregisterWorker removes a worker record. Unknown IDs are ignored.
func (s *Store) DeregisterWorker(ctx context.Context, workerID id.WorkerID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM queuectl_workers WHERE id = $1`, workerID.String())
	if err != nil {
		return fmt.Errorf("queuectl/postgres: deregister worker: %w", err)
	}
	return nil
}

// HeartbeatWorker updates the last-seen timestamp for a worker.
func (s *Store) HeartbeatWorker(ctx context.Context, workerID id.WorkerID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queuectl_workers SET last_seen = $1 WHERE id = $2`,
		at.UTC(), workerID.String(),
	)
	if err != nil {
		return fmt.Errorf("queuectl/postgres: heartbeat worker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queuectl.ErrWorkerNotFound
	}
	return nil
}

// MarkDraining flags a worker record for graceful shutdown.
func (s *Store) MarkDraining(ctx context.Context, workerID id.WorkerID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queuectl_workers SET state = $1 WHERE id = $2`,
		string(cluster.WorkerDraining), workerID.String(),
	)
	if err != nil {
		return fmt.Errorf("queuectl/postgres: mark draining: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queuectl.ErrWorkerNotFound
	}
	return nil
}

// GetWorker returns one worker record.
func (s *Store) GetWorker(ctx context.Context, workerID id.WorkerID) (*cluster.Worker, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workerColumns+` FROM queuectl_workers WHERE id = $1`, workerID.String())
	w, err := scanWorker(row)
	if err != nil {
		if isNoRows(err) {
			return nil, queuectl.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("queuectl/postgres: get worker: %w", err)
	}
	return w, nil
}

// ListWorkers returns all worker records ordered by start time.
func (s *Store) ListWorkers(ctx context.Context) ([]*cluster.Worker, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+workerColumns+` FROM queuectl_workers ORDER BY started_at ASC, id COLLATE "C" ASC`)
	if err != nil {
		return nil, fmt.Errorf("queuectl/postgres: list workers: %w", err)
	}
	return collectWorkers(rows)
}

// ReapDeadWorkers deletes and returns records last seen before cutoff.
func (s *Store) ReapDeadWorkers(ctx context.Context, cutoff time.Time) ([]*cluster.Worker, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM queuectl_workers
		WHERE last_seen < $1
		RETURNING `+workerColumns,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("queuectl/postgres: reap dead workers: %w", err)
	}
	dead, err := collectWorkers(rows)
	if err != nil {
		return nil, err
	}
	cluster.SortByStart(dead)
	return dead, nil
}

func collectWorkers(rows pgx.Rows) ([]*cluster.Worker, error) {
	defer rows.Close()

	workers := make([]*cluster.Worker, 0)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("queuectl/postgres: scan worker row: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queuectl/postgres: iterate worker rows: %w", err)
	}
	return workers, nil
}

// scanWorker scans a single worker row.
func scanWorker(row pgx.Row) (*cluster.Worker, error) {
	var (
		w        cluster.Worker
		idStr    string
		stateStr string
	)
	err := row.Scan(&idStr, &w.Hostname, &w.PID, &stateStr, &w.StartedAt, &w.LastSeen)
	if err != nil {
		return nil, err
	}

	w.State = cluster.WorkerState(stateStr)
	w.StartedAt = w.StartedAt.UTC()
	w.LastSeen = w.LastSeen.UTC()

	parsedID, parseErr := id.ParseWorkerID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("queuectl/postgres: parse worker id %q: %w", idStr, parseErr)
	}
	w.ID = parsedID

	return &w, nil
}
