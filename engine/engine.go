package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/backoff"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/dlq"
	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
	mw "github.com/xraph/queuectl/middleware"
	"github.com/xraph/queuectl/observability"
	"github.com/xraph/queuectl/runner"
	"github.com/xraph/queuectl/status"
	"github.com/xraph/queuectl/worker"
)

const instrumentationName = "github.com/xraph/queuectl"

// Engine owns the job store, the extension registry, the middleware
// chain and the in-process worker pool.
type Engine struct {
	config     queuectl.Config
	store      job.Store
	workers    cluster.Store
	extensions *ext.Registry
	dlqService *dlq.Service
	aggregator *status.Aggregator
	executor   *worker.Executor
	runner     runner.Runner
	bo         backoff.Strategy
	clock      queuectl.Clock
	mws        []mw.Middleware
	exts       []ext.Extension
	logger     *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu   sync.Mutex
	pool *worker.Pool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default engine configuration.
func WithConfig(cfg queuectl.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithClock sets the time source.
func WithClock(c queuectl.Clock) Option {
	return func(eng *Engine) { eng.clock = c }
}

// WithRunner sets the command runner. Defaults to runner.NewShell().
func WithRunner(r runner.Runner) Option {
	return func(eng *Engine) { eng.runner = r }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithBackoff sets the retry backoff strategy. If not set, a power
// strategy on Config.BackoffBase is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. Both the metrics
// middleware and the observability extension use it.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New creates an Engine on top of s. When s also implements
// cluster.Store, workers keep liveness records in it.
func New(s job.Store, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, queuectl.ErrNoStore
	}

	eng := &Engine{
		config: queuectl.DefaultConfig(),
		store:  s,
		clock:  queuectl.SystemClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if err := eng.config.Validate(); err != nil {
		return nil, err
	}

	if cs, ok := s.(cluster.Store); ok {
		eng.workers = cs
	}
	if eng.runner == nil {
		eng.runner = runner.NewShell()
	}
	if eng.bo == nil {
		eng.bo = backoff.NewPower(eng.config.BackoffBase)
	}

	tp := eng.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := eng.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	eng.extensions.Register(observability.NewMetricsExtensionWithMeter(mp.Meter(instrumentationName + "/observability")))
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}

	// Recover → Tracing → Metrics → Logging → user middleware.
	chain := make([]mw.Middleware, 0, 4+len(eng.mws))
	chain = append(chain,
		mw.Recover(eng.logger),
		mw.TracingWithTracer(tp.Tracer(instrumentationName)),
		mw.MetricsWithMeter(mp.Meter(instrumentationName)),
		mw.Logging(eng.logger),
	)
	chain = append(chain, eng.mws...)

	eng.executor = worker.NewExecutor(s, eng.runner, eng.extensions, eng.bo, eng.clock, eng.logger, chain...)
	eng.dlqService = dlq.NewService(s, eng.extensions, eng.clock)
	eng.aggregator = status.NewAggregator(s, eng.workers, eng.clock, eng.config.WorkerTTL)

	return eng, nil
}

// Enqueue creates a pending job for command. A zero max retries falls
// back to Config.MaxRetries.
func (e *Engine) Enqueue(ctx context.Context, command string, opts ...job.Option) (*job.Job, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, queuectl.ErrInvalidCommand
	}

	var o job.Options
	for _, opt := range opts {
		opt(&o)
	}

	maxRetries := o.MaxRetries
	switch {
	case maxRetries < 0:
		return nil, fmt.Errorf("%w: got %d", queuectl.ErrInvalidMaxRetries, maxRetries)
	case maxRetries == 0:
		maxRetries = e.config.MaxRetries
	}

	jobID := o.ID
	switch {
	case jobID.IsNil():
		jobID = id.NewJobID()
	case jobID.Prefix() != id.PrefixJob:
		return nil, fmt.Errorf("%w: %q", queuectl.ErrInvalidJobID, jobID.String())
	}

	j := job.New(jobID, command, maxRetries, e.clock.Now())
	if err := e.store.InsertJob(ctx, j); err != nil {
		return nil, fmt.Errorf("queuectl: enqueue: %w", err)
	}

	e.logger.Debug("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("command", j.Command),
		slog.Int("max_retries", j.MaxRetries),
	)
	e.extensions.EmitJobEnqueued(ctx, j)
	return j, nil
}

// Get returns the job with the given ID.
func (e *Engine) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return e.store.GetJob(ctx, jobID)
}

// List returns jobs in state, newest first.
func (e *Engine) List(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	if _, err := job.ParseState(string(state)); err != nil {
		return nil, err
	}
	return job.Collect(e.store.QueryJobs(ctx, job.QueryOpts{
		ListOpts: opts,
		State:    state,
		Order:    job.OrderDesc,
	}))
}

// Jobs is the lazy form of List: it streams the store's sequence for
// opts without collecting it. The sequence may be ranged once, and the
// engine may be called from inside the range.
func (e *Engine) Jobs(ctx context.Context, opts job.QueryOpts) iter.Seq2[*job.Job, error] {
	return e.store.QueryJobs(ctx, opts)
}

// Status returns the job counts per state.
func (e *Engine) Status(ctx context.Context) (status.Summary, error) {
	return e.aggregator.Summary(ctx)
}

// Report returns job counts together with worker liveness records.
func (e *Engine) Report(ctx context.Context) (*status.Report, error) {
	return e.aggregator.Report(ctx)
}

// ListDead returns dead jobs, newest first.
func (e *Engine) ListDead(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return e.dlqService.List(ctx, opts)
}

// RetryFromDLQ moves a dead job back to pending with a fresh retry budget.
func (e *Engine) RetryFromDLQ(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return e.dlqService.Retry(ctx, jobID)
}

// DLQ returns the dead letter queue service.
func (e *Engine) DLQ() *dlq.Service { return e.dlqService }

// StartWorkers launches count workers in this process. It returns
// queuectl.ErrWorkersRunning if a pool is already active.
func (e *Engine) StartWorkers(ctx context.Context, count int) error {
	if count < 1 || count > e.config.MaxWorkers {
		return fmt.Errorf("%w: %d not in 1..%d", queuectl.ErrInvalidWorkerCount, count, e.config.MaxWorkers)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool != nil && e.pool.Running() {
		return queuectl.ErrWorkersRunning
	}

	opts := []worker.PoolOption{
		worker.WithPoolConcurrency(count),
		worker.WithPollInterval(e.config.PollInterval),
		worker.WithHeartbeatInterval(e.config.HeartbeatInterval),
		worker.WithClock(e.clock),
	}
	if e.workers != nil {
		opts = append(opts, worker.WithClusterStore(e.workers))
	}

	pool := worker.NewPool(e.store, e.executor, e.extensions, e.logger, opts...)
	if err := pool.Start(ctx); err != nil {
		return err
	}
	e.pool = pool
	return nil
}

// StopWorkers asks the in-process workers to exit and waits for their
// in-flight jobs. If ctx expires first, the workers keep draining and
// ctx.Err() is returned.
func (e *Engine) StopWorkers(ctx context.Context) error {
	e.mu.Lock()
	pool := e.pool
	e.mu.Unlock()

	if pool == nil || !pool.Running() {
		return queuectl.ErrWorkersNotRunning
	}
	return pool.Stop(ctx)
}

// Running reports whether an in-process pool is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool != nil && e.pool.Running()
}

// Workers returns a snapshot of the in-process workers.
func (e *Engine) Workers() []worker.Info {
	e.mu.Lock()
	pool := e.pool
	e.mu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Workers()
}

// Done is closed when the current pool has fully stopped. It returns a
// closed channel if no pool was started.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	pool := e.pool
	e.mu.Unlock()

	if pool == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return pool.Done()
}

// DrainWorkers marks every non-stale worker record in the cluster store
// as draining, asking the owning processes to stop. It reports how many
// records were marked.
func (e *Engine) DrainWorkers(ctx context.Context) (int, error) {
	if e.workers == nil {
		return 0, nil
	}

	records, err := e.workers.ListWorkers(ctx)
	if err != nil {
		return 0, err
	}

	now := e.clock.Now()
	g, gctx := errgroup.WithContext(ctx)
	var (
		mu     sync.Mutex
		marked int
	)
	for _, w := range records {
		if w.State == cluster.WorkerDraining || w.Stale(now, e.config.WorkerTTL) {
			continue
		}
		g.Go(func() error {
			err := e.workers.MarkDraining(gctx, w.ID)
			if errors.Is(err, queuectl.ErrWorkerNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			marked++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return marked, err
	}
	return marked, nil
}

// ReapWorkers removes worker records not seen within Config.WorkerTTL.
func (e *Engine) ReapWorkers(ctx context.Context) ([]*cluster.Worker, error) {
	if e.workers == nil {
		return nil, nil
	}
	reaped, err := e.workers.ReapDeadWorkers(ctx, e.clock.Now().Add(-e.config.WorkerTTL))
	if err != nil {
		return nil, err
	}
	for _, w := range reaped {
		e.logger.Info("reaped stale worker",
			slog.String("worker_id", w.ID.String()),
			slog.String("hostname", w.Hostname),
			slog.Time("last_seen", w.LastSeen),
		)
	}
	return reaped, nil
}

// Close stops any running workers and notifies extensions of shutdown.
func (e *Engine) Close(ctx context.Context) error {
	var stopErr error
	if e.Running() {
		stopErr = e.StopWorkers(ctx)
		if errors.Is(stopErr, queuectl.ErrWorkersNotRunning) {
			stopErr = nil
		}
	}
	e.extensions.EmitShutdown(ctx)
	return stopErr
}

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Config returns the engine configuration.
func (e *Engine) Config() queuectl.Config { return e.config }
