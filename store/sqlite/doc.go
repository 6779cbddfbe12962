// Package sqlite implements store.Store on SQLite through database/sql and
// the mattn/go-sqlite3 driver. It is the default backend of the queuectl
// CLI: a single file shared by every process on the host.
//
//	s, err := sqlite.Open("queue.db")
//	if err != nil { ... }
//	defer s.Close()
//	if err := s.Migrate(ctx); err != nil { ... }
//
// Timestamps are stored as INTEGER unix nanoseconds so that ordering by
// created_at is exact.
//
// The pool is limited to one connection. A QueryJobs sequence holds that
// connection until the range ends, so callers must not issue other store
// calls from inside the loop.
package sqlite
