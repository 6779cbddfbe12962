package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// ── Job model ─────────────────────────────────────────────────────

const jobColumns = `id, command, state, attempts, max_retries, created_at, updated_at,
	next_run_at, worker_id, last_exit_code, last_error, output`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j         job.Job
		state     string
		createdAt int64
		updatedAt int64
		nextRunAt sql.NullInt64
		exitCode  sql.NullInt64
		lastError sql.NullString
		output    sql.NullString
	)
	err := row.Scan(
		&j.ID,
		&j.Command,
		&state,
		&j.Attempts,
		&j.MaxRetries,
		&createdAt,
		&updatedAt,
		&nextRunAt,
		&j.WorkerID,
		&exitCode,
		&lastError,
		&output,
	)
	if err != nil {
		return nil, err
	}

	j.State = job.State(state)
	j.CreatedAt = fromNanos(createdAt)
	j.UpdatedAt = fromNanos(updatedAt)
	if nextRunAt.Valid {
		t := fromNanos(nextRunAt.Int64)
		j.NextRunAt = &t
	}
	if exitCode.Valid {
		j.LastExitCode = job.Ptr(int(exitCode.Int64))
	}
	if lastError.Valid {
		j.LastError = job.Ptr(lastError.String)
	}
	if output.Valid {
		j.Output = job.Ptr(output.String)
	}
	return &j, nil
}

func jobArgs(j *job.Job) []any {
	return []any{
		j.ID,
		j.Command,
		string(j.State),
		j.Attempts,
		j.MaxRetries,
		toNanos(j.CreatedAt),
		toNanos(j.UpdatedAt),
		nullNanos(j.NextRunAt),
		j.WorkerID,
		nullInt(j.LastExitCode),
		nullString(j.LastError),
		nullString(j.Output),
	}
}

// ── Worker model ──────────────────────────────────────────────────

const workerColumns = `id, hostname, pid, state, started_at, last_seen`

func scanWorker(row rowScanner) (*cluster.Worker, error) {
	var (
		w         cluster.Worker
		state     string
		startedAt int64
		lastSeen  int64
	)
	if err := row.Scan(&w.ID, &w.Hostname, &w.PID, &state, &startedAt, &lastSeen); err != nil {
		return nil, err
	}
	if w.ID.Prefix() != id.PrefixWorker {
		return nil, fmt.Errorf("queuectl/sqlite: worker id %q has wrong prefix", w.ID.String())
	}
	w.State = cluster.WorkerState(state)
	w.StartedAt = fromNanos(startedAt)
	w.LastSeen = fromNanos(lastSeen)
	return &w, nil
}

// ── conversions ───────────────────────────────────────────────────

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
