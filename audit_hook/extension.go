package audithook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.JobEnqueued   = (*Extension)(nil)
	_ ext.JobStarted    = (*Extension)(nil)
	_ ext.JobCompleted  = (*Extension)(nil)
	_ ext.JobRetrying   = (*Extension)(nil)
	_ ext.JobDead       = (*Extension)(nil)
	_ ext.JobRequeued   = (*Extension)(nil)
	_ ext.WorkerStarted = (*Extension)(nil)
	_ ext.WorkerStopped = (*Extension)(nil)
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	Time       time.Time      `json:"time"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// JSONRecorder writes each event as a single JSON line. Concurrent
// workers share it, so writes are serialized.
type JSONRecorder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONRecorder returns a recorder appending to w.
func NewJSONRecorder(w io.Writer) *JSONRecorder {
	return &JSONRecorder{enc: json.NewEncoder(w)}
}

// Record implements Recorder.
func (r *JSONRecorder) Record(_ context.Context, event *AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(event)
}

// Extension bridges queuectl lifecycle events to a Recorder.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"command", j.Command,
		"max_retries", j.MaxRetries,
	)
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"worker_id", j.WorkerID.String(),
		"attempts", j.Attempts,
	)
}

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"attempts", j.Attempts,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobRetrying implements ext.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	return e.record(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"attempt", attempt,
		"max_retries", j.MaxRetries,
		"next_run_at", nextRunAt.UTC().Format(time.RFC3339),
	)
}

// OnJobDead implements ext.JobDead.
func (e *Extension) OnJobDead(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobDead, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, jobErr,
		"attempts", j.Attempts,
		"max_retries", j.MaxRetries,
	)
}

// OnJobRequeued implements ext.JobRequeued.
func (e *Extension) OnJobRequeued(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobRequeued, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"command", j.Command,
	)
}

// ── Worker hooks ────────────────────────────────────

// OnWorkerStarted implements ext.WorkerStarted.
func (e *Extension) OnWorkerStarted(ctx context.Context, workerID id.WorkerID) error {
	return e.record(ctx, ActionWorkerStarted, SeverityInfo, OutcomeSuccess,
		ResourceWorker, workerID.String(), CategoryWorker, nil)
}

// OnWorkerStopped implements ext.WorkerStopped.
func (e *Extension) OnWorkerStopped(ctx context.Context, workerID id.WorkerID) error {
	return e.record(ctx, ActionWorkerStopped, SeverityInfo, OutcomeSuccess,
		ResourceWorker, workerID.String(), CategoryWorker, nil)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged and never fail the lifecycle step.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		if key, ok := kvPairs[i].(string); ok {
			meta[key] = kvPairs[i+1]
		}
	}

	var reason string
	if err != nil {
		reason = err.Error()
	}

	evt := &AuditEvent{
		Time:       e.now().UTC(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
