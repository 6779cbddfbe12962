package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobEnqueued   = "job.enqueued"
	ActionJobStarted    = "job.started"
	ActionJobCompleted  = "job.completed"
	ActionJobRetrying   = "job.retrying"
	ActionJobDead       = "job.dead"
	ActionJobRequeued   = "job.requeued"
	ActionWorkerStarted = "worker.started"
	ActionWorkerStopped = "worker.stopped"
)

// Audit event categories group related actions.
const (
	CategoryJob    = "queuectl.job"
	CategoryWorker = "queuectl.worker"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob    = "job"
	ResourceWorker = "worker"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobEnqueued,
		ActionJobStarted,
		ActionJobCompleted,
		ActionJobRetrying,
		ActionJobDead,
		ActionJobRequeued,
		ActionWorkerStarted,
		ActionWorkerStopped,
	}
}
