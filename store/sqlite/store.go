package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/job"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ job.Store     = (*Store)(nil)
	_ cluster.Store = (*Store)(nil)
)

// defaultParams are appended to DSNs that carry no query string.
const defaultParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// Store is a database/sql implementation of store.Store using SQLite.
type Store struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (creating if needed) the SQLite database at dsn. A plain
// file path gets WAL journaling and a busy timeout. The returned Store
// owns the handle and closes it on Close.
func Open(dsn string, opts ...Option) (*Store, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?" + defaultParams
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("queuectl/sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := New(db, opts...)
	s.owned = true
	return s, nil
}

// New wraps an existing handle. The caller owns the db lifecycle; Close
// will not close it.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database if the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// ── helpers ──────────────────────────────────────────────────────

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a SQLite error is a primary key or unique
// constraint violation.
func isDuplicateKey(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
