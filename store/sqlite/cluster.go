package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/id"
)

// RegisterWorker adds a worker record, replacing any record with the
// same ID.
func (s *Store) RegisterWorker(ctx context.Context, w *cluster.Worker) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queuectl_workers (`+workerColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			hostname = excluded.hostname,
			pid = excluded.pid,
			state = excluded.state,
			started_at = excluded.started_at,
			last_seen = excluded.last_seen`,
		w.ID.String(), w.Hostname, w.PID, string(w.State), toNanos(w.StartedAt), toNanos(w.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("queuectl/sqlite: register worker: %w", err)
	}
	return nil
}

// DeregisterWorker removes a worker record. Unknown IDs are ignored.
func (s *Store) DeregisterWorker(ctx context.Context, workerID id.WorkerID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queuectl_workers WHERE id = ?`, workerID.String())
	if err != nil {
		return fmt.Errorf("queuectl/sqlite: deregister worker: %w", err)
	}
	return nil
}

// HeartbeatWorker updates the last-seen timestamp for a worker.
func (s *Store) HeartbeatWorker(ctx context.Context, workerID id.WorkerID, at time.Time) error {
	return s.updateWorker(ctx, "heartbeat worker",
		`UPDATE queuectl_workers SET last_seen = ? WHERE id = ?`, toNanos(at), workerID.String())
}

// MarkDraining flags a worker record for graceful shutdown.
func (s *Store) MarkDraining(ctx context.Context, workerID id.WorkerID) error {
	return s.updateWorker(ctx, "mark draining",
		`UPDATE queuectl_workers SET state = ? WHERE id = ?`, string(cluster.WorkerDraining), workerID.String())
}

func (s *Store) updateWorker(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("queuectl/sqlite: %s: %w", op, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 { //nolint:errcheck // driver always returns nil
		return queuectl.ErrWorkerNotFound
	}
	return nil
}

// GetWorker returns one worker record.
func (s *Store) GetWorker(ctx context.Context, workerID id.WorkerID) (*cluster.Worker, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM queuectl_workers WHERE id = ?`, workerID.String())
	w, err := scanWorker(row)
	if err != nil {
		if isNoRows(err) {
			return nil, queuectl.ErrWorkerNotFound
		}
		return nil, fmt.Errorf("queuectl/sqlite: get worker: %w", err)
	}
	return w, nil
}

// ListWorkers returns all worker records ordered by start time.
func (s *Store) ListWorkers(ctx context.Context) ([]*cluster.Worker, error) {
	return s.selectWorkers(ctx, "list workers",
		`SELECT `+workerColumns+` FROM queuectl_workers ORDER BY started_at ASC, id ASC`)
}

// ReapDeadWorkers deletes and returns records last seen before cutoff.
func (s *Store) ReapDeadWorkers(ctx context.Context, cutoff time.Time) ([]*cluster.Worker, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: reap dead workers: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rows, err := tx.QueryContext(ctx,
		`SELECT `+workerColumns+` FROM queuectl_workers WHERE last_seen < ? ORDER BY started_at ASC, id ASC`,
		toNanos(cutoff))
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: reap dead workers: %w", err)
	}
	dead, err := collectWorkers(rows)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: reap dead workers: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM queuectl_workers WHERE last_seen < ?`, toNanos(cutoff)); err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: reap dead workers: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: reap dead workers: %w", err)
	}
	return dead, nil
}

func (s *Store) selectWorkers(ctx context.Context, op, query string, args ...any) ([]*cluster.Worker, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: %s: %w", op, err)
	}
	workers, err := collectWorkers(rows)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: %s: %w", op, err)
	}
	return workers, nil
}

type workerRows interface {
	rowScanner
	Next() bool
	Err() error
	Close() error
}

func collectWorkers(rows workerRows) ([]*cluster.Worker, error) {
	defer rows.Close()

	workers := make([]*cluster.Worker, 0)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}
