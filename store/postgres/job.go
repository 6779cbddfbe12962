package postgres

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

const jobColumns = `id, command, state, attempts, max_retries, created_at, updated_at,
	next_run_at, worker_id, last_exit_code, last_error, output`

// InsertJob persists a new job.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queuectl_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID.String(), j.Command, string(j.State), j.Attempts, j.MaxRetries,
		j.CreatedAt, j.UpdatedAt, j.NextRunAt, nullID(j.WorkerID),
		j.LastExitCode, j.LastError, j.Output,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return queuectl.ErrJobAlreadyExists
		}
		return fmt.Errorf("queuectl/postgres: insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM queuectl_jobs WHERE id = $1`, jobID.String())
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, queuectl.ErrJobNotFound
		}
		return nil, fmt.Errorf("queuectl/postgres: get job: %w", err)
	}
	return j, nil
}

// QueryJobs streams jobs matching opts. The rows are released when the
// range ends.
func (s *Store) QueryJobs(ctx context.Context, opts job.QueryOpts) iter.Seq2[*job.Job, error] {
	query, args := buildQuery(opts)
	return job.SinglePass(func(yield func(*job.Job, error) bool) {
		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("queuectl/postgres: query jobs: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			j, err := scanJob(rows)
			if err != nil {
				yield(nil, fmt.Errorf("queuectl/postgres: scan job row: %w", err))
				return
			}
			if !yield(j, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("queuectl/postgres: iterate job rows: %w", err))
		}
	})
}

func buildQuery(opts job.QueryOpts) (string, []any) {
	var b strings.Builder
	args := []any{string(opts.State)}

	b.WriteString(`SELECT ` + jobColumns + ` FROM queuectl_jobs WHERE state = $1`)
	if opts.EligibleAt != nil {
		args = append(args, *opts.EligibleAt)
		b.WriteString(` AND (next_run_at IS NULL OR next_run_at <= $` + strconv.Itoa(len(args)) + `)`)
	}
	if opts.Order == job.OrderDesc {
		b.WriteString(` ORDER BY created_at DESC, id COLLATE "C" DESC`)
	} else {
		b.WriteString(` ORDER BY created_at ASC, id COLLATE "C" ASC`)
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		b.WriteString(` LIMIT $` + strconv.Itoa(len(args)))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		b.WriteString(` OFFSET $` + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

// ConditionalUpdate applies p only while the row is still in state
// expected.
func (s *Store) ConditionalUpdate(ctx context.Context, jobID id.JobID, expected job.State, p job.Patch) (bool, error) {
	sets := []string{"state", "worker_id", "next_run_at", "updated_at"}
	args := []any{string(p.State), nullID(p.WorkerID), utc(p.NextRunAt), p.UpdatedAt.UTC()}

	if p.Attempts != nil {
		sets = append(sets, "attempts")
		args = append(args, *p.Attempts)
	}
	if p.LastExitCode != nil {
		sets = append(sets, "last_exit_code")
		args = append(args, *p.LastExitCode)
	}
	if p.LastError != nil {
		sets = append(sets, "last_error")
		args = append(args, *p.LastError)
	}
	if p.Output != nil {
		sets = append(sets, "output")
		args = append(args, *p.Output)
	}

	var b strings.Builder
	b.WriteString(`UPDATE queuectl_jobs SET `)
	for i, col := range sets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col + " = $" + strconv.Itoa(i+1))
	}
	args = append(args, jobID.String(), string(expected))
	fmt.Fprintf(&b, " WHERE id = $%d AND state = $%d", len(args)-1, len(args))

	tag, err := s.pool.Exec(ctx, b.String(), args...)
	if err != nil {
		return false, fmt.Errorf("queuectl/postgres: conditional update: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountByState returns the number of jobs per state.
func (s *Store) CountByState(ctx context.Context) (map[job.State]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT state, COUNT(*) FROM queuectl_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("queuectl/postgres: count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[job.State]int64)
	for rows.Next() {
		var (
			state string
			n     int64
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("queuectl/postgres: count jobs: %w", err)
		}
		counts[job.State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queuectl/postgres: count jobs: %w", err)
	}
	return counts, nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		idStr     string
		stateStr  string
		workerStr *string
	)
	err := row.Scan(
		&idStr, &j.Command, &stateStr, &j.Attempts, &j.MaxRetries,
		&j.CreatedAt, &j.UpdatedAt, &j.NextRunAt, &workerStr,
		&j.LastExitCode, &j.LastError, &j.Output,
	)
	if err != nil {
		return nil, err
	}

	j.State = job.State(stateStr)
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	j.NextRunAt = utc(j.NextRunAt)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("queuectl/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	if workerStr != nil && *workerStr != "" {
		parsedWorker, workerErr := id.ParseWorkerID(*workerStr)
		if workerErr != nil {
			return nil, fmt.Errorf("queuectl/postgres: parse worker id %q: %w", *workerStr, workerErr)
		}
		j.WorkerID = parsedWorker
	}

	return &j, nil
}

// nullID maps id.Nil to NULL.
func nullID(i id.ID) *string {
	if i.IsNil() {
		return nil
	}
	s := i.String()
	return &s
}
