package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/cluster"
	"github.com/xraph/queuectl/ext"
	"github.com/xraph/queuectl/job"
)

// Pool manages a set of independent worker goroutines that claim jobs
// and execute them through the Executor.
type Pool struct {
	store        job.Store
	workers      cluster.Store
	executor     *Executor
	extensions   *ext.Registry
	clock        queuectl.Clock
	logger       *slog.Logger
	concurrency  int
	pollInterval time.Duration

	// Liveness records. Ignored when workers is nil.
	heartbeatInterval time.Duration
	hostname          string
	pid               int

	handles     []*handle
	stopCh      chan struct{}
	stopOnce    sync.Once
	workersWg   sync.WaitGroup
	workersDone chan struct{}
	wg          sync.WaitGroup
	done        chan struct{}
	mu          sync.Mutex
	started     bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how long an idle worker sleeps after a claim miss.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithClusterStore enables per-worker liveness records.
func WithClusterStore(s cluster.Store) PoolOption {
	return func(p *Pool) { p.workers = s }
}

// WithHeartbeatInterval sets how often liveness records are refreshed
// and checked for a draining mark. A zero value disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithClock sets the clock used for claims and heartbeats.
func WithClock(c queuectl.Clock) PoolOption {
	return func(p *Pool) { p.clock = c }
}

// NewPool creates a worker pool.
func NewPool(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	hostname, _ := os.Hostname() //nolint:errcheck // informational only
	p := &Pool{
		store:        store,
		executor:     executor,
		extensions:   extensions,
		clock:        queuectl.SystemClock(),
		logger:       logger,
		concurrency:  1,
		pollInterval: 2 * time.Second,
		hostname:     hostname,
		pid:          os.Getpid(),
		stopCh:       make(chan struct{}),
		workersDone:  make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the worker goroutines and returns immediately. A pool
// runs once; calling Start again is a no-op.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	p.started = true

	p.handles = make([]*handle, p.concurrency)
	for i := range p.handles {
		p.handles[i] = newHandle()
	}

	p.logger.Info("worker pool starting",
		slog.Int("concurrency", p.concurrency),
		slog.Duration("poll_interval", p.pollInterval),
	)

	for _, h := range p.handles {
		p.register(ctx, h)
		p.workersWg.Add(1)
		go p.workerLoop(h)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.workersWg.Wait()
		close(p.workersDone)
	}()

	if p.workers != nil && p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.heartbeatLoop()
	}

	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	return nil
}

// Stop asks every worker to exit at its next loop boundary and waits for
// in-flight jobs to finish. If ctx expires first, Stop returns ctx.Err()
// and the workers keep draining in the background. Jobs are never
// cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}

	p.stopOnce.Do(func() {
		p.logger.Info("worker pool stopping")
		close(p.stopCh)
	})

	select {
	case <-p.done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, workers still draining")
		return ctx.Err()
	}
}

// Done is closed once every worker has exited, whether through Stop or
// because all liveness records were marked draining.
func (p *Pool) Done() <-chan struct{} { return p.done }

// Running reports whether any worker goroutine may still be active.
func (p *Pool) Running() bool {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Workers returns a snapshot of every worker goroutine.
func (p *Pool) Workers() []Info {
	p.mu.Lock()
	handles := p.handles
	p.mu.Unlock()

	out := make([]Info, len(handles))
	for i, h := range handles {
		out[i] = h.info()
	}
	return out
}

// workerLoop is run by each worker goroutine.
func (p *Pool) workerLoop(h *handle) {
	defer p.workersWg.Done()

	// The subprocess context is never cancelled, so a stop always lets
	// the current job finish.
	ctx := context.Background()
	p.extensions.EmitWorkerStarted(ctx, h.id)

	for !p.stopping(h) {
		h.setState(StateClaiming)
		j, err := Claim(ctx, p.store, h.id, p.clock.Now())
		if err != nil {
			p.logger.Error("claim error",
				slog.String("worker_id", h.id.String()),
				slog.String("error", err.Error()),
			)
			h.setState(StateIdle)
			p.sleep(h)
			continue
		}
		if j == nil {
			h.setState(StateIdle)
			p.sleep(h)
			continue
		}

		h.begin(j.ID)
		p.extensions.EmitJobStarted(ctx, j)

		out := p.executor.Run(ctx, j)

		h.setState(StateFinalizing)
		if err := p.executor.Finalize(ctx, j, out); err != nil {
			p.logger.Debug("finalize failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		h.finish()
	}

	h.setState(StateStopping)
	p.deregister(h)
	p.extensions.EmitWorkerStopped(ctx, h.id)
	h.setState(StateStopped)
}

func (p *Pool) stopping(h *handle) bool {
	select {
	case <-p.stopCh:
		return true
	case <-h.drain:
		return true
	default:
		return false
	}
}

func (p *Pool) sleep(h *handle) {
	t := time.NewTimer(p.pollInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stopCh:
	case <-h.drain:
	}
}

// ──────────────────────────────────────────────────
// Liveness records
// ──────────────────────────────────────────────────

func (p *Pool) register(ctx context.Context, h *handle) {
	if p.workers == nil {
		return
	}
	now := p.clock.Now()
	err := p.workers.RegisterWorker(ctx, &cluster.Worker{
		ID:        h.id,
		Hostname:  p.hostname,
		PID:       p.pid,
		State:     cluster.WorkerActive,
		StartedAt: now,
		LastSeen:  now,
	})
	if err != nil {
		p.logger.Warn("worker registration failed",
			slog.String("worker_id", h.id.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) deregister(h *handle) {
	if p.workers == nil {
		return
	}
	if err := p.workers.DeregisterWorker(context.Background(), h.id); err != nil {
		p.logger.Warn("worker deregistration failed",
			slog.String("worker_id", h.id.String()),
			slog.String("error", err.Error()),
		)
	}
}

// heartbeatLoop refreshes liveness records until every worker has exited.
func (p *Pool) heartbeatLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.workersDone:
			return
		case <-ticker.C:
			p.heartbeat()
		}
	}
}

// heartbeat refreshes each record and drains workers whose record was
// marked draining by another process.
func (p *Pool) heartbeat() {
	ctx := context.Background()
	for _, h := range p.handles {
		if info := h.info(); info.State == StateStopping || info.State == StateStopped {
			continue
		}

		err := p.workers.HeartbeatWorker(ctx, h.id, p.clock.Now())
		if errors.Is(err, queuectl.ErrWorkerNotFound) {
			p.logger.Warn("worker record missing, re-registering", slog.String("worker_id", h.id.String()))
			p.register(ctx, h)
			continue
		}
		if err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("worker_id", h.id.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		w, err := p.workers.GetWorker(ctx, h.id)
		if err != nil {
			continue
		}
		if w.State == cluster.WorkerDraining {
			p.logger.Info("worker marked draining", slog.String("worker_id", h.id.String()))
			h.requestDrain()
		}
	}
}
