// Package store defines the aggregate persistence interface.
//
// Each subsystem (job, cluster) defines its own store interface. The
// composite [Store] composes them. A single backend need only implement
// Store to satisfy every subsystem's persistence contract.
//
// The composite interface:
//
//	type Store interface {
//	    job.Store
//	    cluster.Store
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// Every backend implements job.Store.ConditionalUpdate natively, as a
// single conditional write that applies only while the job is still in
// the expected state. That primitive is what makes claims atomic without
// a lock manager.
//
// # Available Backends
//
//   - store/memory: in-memory store for development and testing
//   - store/sqlite: SQLite via mattn/go-sqlite3, the CLI default
//   - store/postgres: PostgreSQL backend using pgx/v5
//   - store/redis: Redis backend using go-redis/v9 and a Lua CAS script
//   - store/mongo: MongoDB backend using mongo-driver/v2
//
// # Usage
//
//	import "github.com/xraph/queuectl/store/sqlite"
//
//	s, err := sqlite.Open("queue.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	eng, err := engine.New(s)
//
// # Migrations
//
// Call Migrate once at startup to create or update the schema:
//
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Conformance
//
// store/storetest holds the behavioural suite every backend runs in its
// own tests.
package store
