package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/job"
)

// Collection name constants.
const (
	colJobs    = "queuectl_jobs"
	colWorkers = "queuectl_workers"
)

// DefaultDatabase is used by Open when the URI names no database.
const DefaultDatabase = "queuectl"

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ job.Store     = (*Store)(nil)
	_ cluster.Store = (*Store)(nil)
)

// Store implements store.Store on a MongoDB database. When built with New
// the caller owns the client lifecycle.
type Store struct {
	db     *mongod.Database
	client *mongod.Client
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

// New creates a store on db. Close does not disconnect db's client.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to uri and returns a store that owns the client. The
// database is taken from database, or DefaultDatabase when empty.
func Open(uri, database string, opts ...Option) (*Store, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("queuectl/mongo: connect: %w", err)
	}
	if database == "" {
		database = DefaultDatabase
	}
	s := New(client.Database(database), opts...)
	s.client = client
	return s, nil
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// Migrate creates indexes for all queuectl collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("queuectl/mongo: migrate %s indexes: %w", col, err)
		}
		s.logger.Debug("ensured indexes", slog.String("collection", col), slog.Int("count", len(models)))
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the client if Open created it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all queuectl
// collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colJobs: {
			// Claim and list index: state, then creation order.
			{Keys: bson.D{
				{Key: "state", Value: 1},
				{Key: "created_at", Value: 1},
				{Key: "_id", Value: 1},
			}},
		},
		colWorkers: {
			{Keys: bson.D{{Key: "started_at", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "last_seen", Value: 1}}},
		},
	}
}
