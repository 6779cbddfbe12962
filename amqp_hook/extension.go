package amqphook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// DefaultExchange is used when the publisher does not name its exchange.
const DefaultExchange = "queuectl.events"

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

// Extension publishes queuectl lifecycle events to an AMQP exchange.
type Extension struct {
	pub      Publisher
	exchange string
	appID    string
	logger   *slog.Logger
	enabled  map[string]bool        // nil = all enabled
	payloads map[string]PayloadFunc // custom payload builders
}

// New creates an Extension that publishes through pub. If pub is a
// *Channel its declared exchange is used, otherwise DefaultExchange.
func New(pub Publisher, opts ...Option) *Extension {
	h := &Extension{
		pub:      pub,
		exchange: DefaultExchange,
		appID:    "queuectl",
		logger:   slog.Default(),
	}
	if c, ok := pub.(interface{ Exchange() string }); ok && c.Exchange() != "" {
		h.exchange = c.Exchange()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "amqp-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (h *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobEnqueued, newJobPayload(j))
}

// OnJobStarted implements ext.JobStarted.
func (h *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobStarted, newJobPayload(j))
}

// OnJobCompleted implements ext.JobCompleted.
func (h *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return h.send(ctx, EventJobCompleted, &jobCompletedPayload{
		jobPayload: *newJobPayload(j),
		ElapsedMs:  elapsed.Milliseconds(),
	})
}

// OnJobRetrying implements ext.JobRetrying.
func (h *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error {
	return h.send(ctx, EventJobRetrying, &jobRetryingPayload{
		jobPayload: *newJobPayload(j),
		Attempt:    attempt,
		NextRunAt:  nextRunAt.UTC().Format(time.RFC3339),
	})
}

// OnJobDead implements ext.JobDead.
func (h *Extension) OnJobDead(ctx context.Context, j *job.Job, jobErr error) error {
	p := &jobDeadPayload{jobPayload: *newJobPayload(j)}
	if jobErr != nil {
		p.Error = jobErr.Error()
	}
	return h.send(ctx, EventJobDead, p)
}

// OnJobRequeued implements ext.JobRequeued.
func (h *Extension) OnJobRequeued(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobRequeued, newJobPayload(j))
}

// ── Worker hooks ────────────────────────────────────

// OnWorkerStarted implements ext.WorkerStarted.
func (h *Extension) OnWorkerStarted(ctx context.Context, workerID id.WorkerID) error {
	return h.send(ctx, EventWorkerStarted, &workerPayload{WorkerID: workerID.String()})
}

// OnWorkerStopped implements ext.WorkerStopped.
func (h *Extension) OnWorkerStopped(ctx context.Context, workerID id.WorkerID) error {
	return h.send(ctx, EventWorkerStopped, &workerPayload{WorkerID: workerID.String()})
}

// ── Internal helpers ────────────────────────────────

// send publishes an event if its type is enabled.
func (h *Extension) send(ctx context.Context, eventType string, defaultData any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("amqphook: encode %s: %w", eventType, err)
	}

	err = h.pub.PublishWithContext(ctx, h.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         eventType,
		AppId:        h.appID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		h.logger.Debug("amqp publish failed",
			slog.String("event", eventType),
			slog.String("exchange", h.exchange),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("amqphook: publish %s: %w", eventType, err)
	}
	return nil
}

// ── Default payload types ───────────────────────────

type jobPayload struct {
	JobID      string `json:"job_id"`
	Command    string `json:"command"`
	State      string `json:"state"`
	Attempts   int    `json:"attempts"`
	MaxRetries int    `json:"max_retries"`
	WorkerID   string `json:"worker_id,omitempty"`
}

func newJobPayload(j *job.Job) *jobPayload {
	p := &jobPayload{
		JobID:      j.ID.String(),
		Command:    j.Command,
		State:      string(j.State),
		Attempts:   j.Attempts,
		MaxRetries: j.MaxRetries,
	}
	if !j.WorkerID.IsNil() {
		p.WorkerID = j.WorkerID.String()
	}
	return p
}

type jobCompletedPayload struct {
	jobPayload
	ElapsedMs int64 `json:"elapsed_ms"`
}

type jobRetryingPayload struct {
	jobPayload
	Attempt   int    `json:"attempt"`
	NextRunAt string `json:"next_run_at"`
}

type jobDeadPayload struct {
	jobPayload
	Error string `json:"error"`
}

type workerPayload struct {
	WorkerID string `json:"worker_id"`
}
