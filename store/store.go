// Package store defines the aggregate persistence interface. Each subsystem
// (job, cluster) defines its own store interface. The composite Store
// composes them. Backends: Memory, SQLite, Postgres, Redis and MongoDB.
package store

import (
	"context"

	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/job"
)

// Store is the aggregate persistence interface.
// A single backend implements every subsystem store so jobs and worker
// liveness records live side by side.
type Store interface {
	job.Store
	cluster.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
