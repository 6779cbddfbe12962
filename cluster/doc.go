// Package cluster provides the cross-process worker liveness registry.
//
// Each running worker goroutine registers itself as a [Worker] record in
// the same store that holds jobs:
//   - a unique [id.WorkerID]
//   - the hostname and PID of its process
//   - a state: [WorkerActive] or [WorkerDraining]
//
// Workers heartbeat periodically. A record whose LastSeen is older than the
// configured TTL is reported as stale and can be removed with
// [Store.ReapDeadWorkers].
//
// Another process (for example `queuectl worker stop`) requests a graceful
// shutdown by marking records draining with [Store.MarkDraining]. The
// owning pool notices on its next heartbeat and drains.
package cluster
