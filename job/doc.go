// Package job defines the job entity, its state machine, and the store
// contract every backend implements.
//
// # Job Entity
//
// A [Job] wraps one shell command and the metadata of its most recent
// execution. It progresses through:
//
//	pending → processing → completed
//	pending → processing → pending (retry scheduled via NextRunAt) → ...
//	pending → processing → dead
//	dead → pending (DLQ revival, attempts reset)
//
// History is overwritten in place; there is no per-attempt record.
//
// # Store
//
// [Store] has exactly one mutating primitive after insert:
// [Store.ConditionalUpdate], which applies a [Patch] only if the stored
// state still equals the expected state. Claim, finalize, and DLQ revival
// are all expressed through it.
package job
