package amqphook

// Lifecycle event types. Each constant maps to one ext lifecycle hook and
// is used as the routing key and the message Type header.
const (
	EventJobEnqueued   = "queuectl.job.enqueued"
	EventJobStarted    = "queuectl.job.started"
	EventJobCompleted  = "queuectl.job.completed"
	EventJobRetrying   = "queuectl.job.retrying"
	EventJobDead       = "queuectl.job.dead"
	EventJobRequeued   = "queuectl.job.requeued"
	EventWorkerStarted = "queuectl.worker.started"
	EventWorkerStopped = "queuectl.worker.stopped"
)

// AllEvents returns every event type the extension can publish.
func AllEvents() []string {
	return []string{
		EventJobEnqueued,
		EventJobStarted,
		EventJobCompleted,
		EventJobRetrying,
		EventJobDead,
		EventJobRequeued,
		EventWorkerStarted,
		EventWorkerStopped,
	}
}
