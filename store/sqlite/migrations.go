package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/queuectl"
)

// migration is one forward-only schema step.
type migration struct {
	version string
	name    string
	stmts   []string
}

// migrations is applied in order; each version is recorded in
// queuectl_migrations and never re-run.
var migrations = []migration{
	{
		version: "20260101120000",
		name:    "create_jobs_table",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS queuectl_jobs (
				id              TEXT PRIMARY KEY,
				command         TEXT NOT NULL,
				state           TEXT NOT NULL DEFAULT 'pending',
				attempts        INTEGER NOT NULL DEFAULT 0,
				max_retries     INTEGER NOT NULL DEFAULT 3,
				created_at      INTEGER NOT NULL,
				updated_at      INTEGER NOT NULL,
				next_run_at     INTEGER,
				worker_id       TEXT,
				last_exit_code  INTEGER,
				last_error      TEXT,
				output          TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_queuectl_jobs_claim
				ON queuectl_jobs (state, created_at, id)`,
		},
	},
	{
		version: "20260101120001",
		name:    "create_workers_table",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS queuectl_workers (
				id          TEXT PRIMARY KEY,
				hostname    TEXT NOT NULL DEFAULT '',
				pid         INTEGER NOT NULL DEFAULT 0,
				state       TEXT NOT NULL DEFAULT 'active',
				started_at  INTEGER NOT NULL,
				last_seen   INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_queuectl_workers_last_seen
				ON queuectl_workers (last_seen)`,
		},
	},
}

// Migrate creates the schema, applying each pending migration in its own
// transaction.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS queuectl_migrations (
			version     TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		)`)
	if err != nil {
		return fmt.Errorf("%w: queuectl/sqlite: create migrations table: %w", queuectl.ErrMigrationFailed, err)
	}

	for _, m := range migrations {
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("%w: queuectl/sqlite: %s: %w", queuectl.ErrMigrationFailed, m.name, err)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queuectl_migrations WHERE version = ?`, m.version,
	).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO queuectl_migrations (version, name) VALUES (?, ?)`, m.version, m.name,
	); err != nil {
		return err
	}

	s.logger.Debug("applied migration",
		slog.String("version", m.version),
		slog.String("name", m.name),
	)
	return tx.Commit()
}
