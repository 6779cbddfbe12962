// Package queuectl provides a durable shell-command job queue with a pool
// of independent workers. Jobs are claimed with an optimistic
// compare-and-swap against the store, executed through a Command Runner,
// and finalized into completed, retried-with-backoff, or dead.
//
// queuectl is usable as a library or through the queuectl CLI and HTTP
// API. Pick a store backend, build an engine, and start workers.
//
// # Quick Start
//
//	s := memory.New()
//	eng, err := engine.New(s,
//	    engine.WithConfig(queuectl.NewConfig(queuectl.WithMaxRetries(5))),
//	)
//	j, err := eng.Enqueue(ctx, "echo hi")
//	err = eng.StartWorkers(ctx, 4)
//	...
//	err = eng.StopWorkers(ctx) // drains in-flight jobs
//
// # Architecture
//
// Each subsystem (job, cluster) defines its own store interface. A single
// backend (memory, sqlite, postgres, redis, mongo) implements all of them.
// Every state transition of a job is a single-row conditional update
// guarded on the job's current state; no other coordination is used.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package queuectl
