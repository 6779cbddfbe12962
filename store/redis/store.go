package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/job"
)

// Compile-time interface checks.
var (
	_ job.Store     = (*Store)(nil)
	_ cluster.Store = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBatchSize sets how many IDs a query reads per round trip.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client    redis.Cmdable
	closer    func() error
	batchSize int
	logger    *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, batchSize: 100, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open parses a redis:// URL and returns a store that owns its client.
func Open(url string, opts ...Option) (*Store, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(o)
	s := New(client, opts...)
	s.closer = client.Close
	return s, nil
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client if the store opened it.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
