package sqlite

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// InsertJob persists a new job.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queuectl_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobArgs(j)...,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return queuectl.ErrJobAlreadyExists
		}
		return fmt.Errorf("queuectl/sqlite: insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM queuectl_jobs WHERE id = ?`, jobID.String())
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, queuectl.ErrJobNotFound
		}
		return nil, fmt.Errorf("queuectl/sqlite: get job: %w", err)
	}
	return j, nil
}

// QueryJobs reads the matching rows when iteration begins and closes
// the cursor before yielding. The store holds a single connection, so
// an open cursor would block any store call made from inside the range.
func (s *Store) QueryJobs(ctx context.Context, opts job.QueryOpts) iter.Seq2[*job.Job, error] {
	query, args := buildQuery(opts)
	return job.SinglePass(func(yield func(*job.Job, error) bool) {
		jobs, err := s.queryJobs(ctx, query, args)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, j := range jobs {
			if !yield(j, nil) {
				return
			}
		}
	})
}

func (s *Store) queryJobs(ctx context.Context, query string, args []any) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("queuectl/sqlite: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: query jobs: %w", err)
	}
	return jobs, nil
}

func buildQuery(opts job.QueryOpts) (string, []any) {
	var b strings.Builder
	args := []any{string(opts.State)}

	b.WriteString(`SELECT ` + jobColumns + ` FROM queuectl_jobs WHERE state = ?`)
	if opts.EligibleAt != nil {
		b.WriteString(` AND (next_run_at IS NULL OR next_run_at <= ?)`)
		args = append(args, toNanos(*opts.EligibleAt))
	}
	if opts.Order == job.OrderDesc {
		b.WriteString(` ORDER BY created_at DESC, id DESC`)
	} else {
		b.WriteString(` ORDER BY created_at ASC, id ASC`)
	}
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		b.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, limit, opts.Offset)
	}
	return b.String(), args
}

// ConditionalUpdate applies p only while the row is still in state
// expected.
func (s *Store) ConditionalUpdate(ctx context.Context, jobID id.JobID, expected job.State, p job.Patch) (bool, error) {
	query, args := buildPatch(p)
	query += ` WHERE id = ? AND state = ?`
	args = append(args, jobID.String(), string(expected))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("queuectl/sqlite: conditional update: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("queuectl/sqlite: conditional update: %w", err)
	}
	return rows == 1, nil
}

func buildPatch(p job.Patch) (string, []any) {
	sets := []string{"state = ?", "worker_id = ?", "next_run_at = ?", "updated_at = ?"}
	args := []any{string(p.State), p.WorkerID, nullNanos(p.NextRunAt), toNanos(p.UpdatedAt)}

	if p.Attempts != nil {
		sets = append(sets, "attempts = ?")
		args = append(args, *p.Attempts)
	}
	if p.LastExitCode != nil {
		sets = append(sets, "last_exit_code = ?")
		args = append(args, *p.LastExitCode)
	}
	if p.LastError != nil {
		sets = append(sets, "last_error = ?")
		args = append(args, *p.LastError)
	}
	if p.Output != nil {
		sets = append(sets, "output = ?")
		args = append(args, *p.Output)
	}
	return `UPDATE queuectl_jobs SET ` + strings.Join(sets, ", "), args
}

// CountByState returns the number of jobs per state.
func (s *Store) CountByState(ctx context.Context) (map[job.State]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM queuectl_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[job.State]int64)
	for rows.Next() {
		var (
			state string
			n     int64
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("queuectl/sqlite: count jobs: %w", err)
		}
		counts[job.State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: count jobs: %w", err)
	}
	return counts, nil
}
