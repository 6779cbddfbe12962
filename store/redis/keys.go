package redis

import "github.com/xraph/queuectl/job"

// Redis key naming conventions for queuectl data.
// All keys are prefixed with "queuectl:" to avoid collisions.

const keyPrefix = "queuectl:"

// ── Job keys ──

// jobKey returns the key for a job hash: queuectl:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// stateKey returns the Sorted Set key for a state: queuectl:state:{state}
func stateKey(s job.State) string { return keyPrefix + "state:" + string(s) }

// ── Cluster keys ──

// workerKey returns the key for a worker hash: queuectl:worker:{id}
func workerKey(id string) string { return keyPrefix + "worker:" + id }

// workersKey is the Sorted Set of worker IDs scored by start time.
const workersKey = keyPrefix + "workers"
