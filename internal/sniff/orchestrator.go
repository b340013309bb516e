// Package sniff contains the scheduling core: the executor driving one job
// and the orchestrator façade owning queue, locks, worker pool and result
// store.
package sniff

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/raf-andrew/sniffer/internal/domains"
	"github.com/raf-andrew/sniffer/internal/locker"
	"github.com/raf-andrew/sniffer/internal/model"
	"github.com/raf-andrew/sniffer/internal/pool"
	"github.com/raf-andrew/sniffer/internal/queue"
	"github.com/raf-andrew/sniffer/internal/store"
)

// JobStatus is the caller-facing view of one job.
type JobStatus struct {
	ID        string           `json:"id"`
	Status    model.Status     `json:"status"`
	FileCount int              `json:"file_count"`
	Domains   []string         `json:"domains"`
	Error     string           `json:"error,omitempty"`
	Result    *model.JobRecord `json:"result,omitempty"` // set once terminal
}

// Metrics is a point-in-time view of the queue and pool.
type Metrics struct {
	Pending       int `json:"pending"`
	Active        int `json:"active"`
	Completed     int `json:"completed"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Orchestrator is the public façade: submit, status, cancel, metrics,
// shutdown. It owns the lifecycles of every other scheduling component.
type Orchestrator struct {
	queue    *queue.Queue
	locker   *locker.Manager
	pool     *pool.Pool
	store    *store.Store
	registry *domains.Registry
	executor *Executor
	sweeper  gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mx     sync.Mutex
	seq    uint64
	active map[string]*model.Job
	closed bool
}

// New builds and starts an orchestrator from config. The dispatcher and the
// cache eviction sweep run until Shutdown.
func New(ctx context.Context, cfg model.Config, registry *domains.Registry) (*Orchestrator, error) {
	ttl, err := model.ParseDuration(cfg.Sniffer.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("parsing sniffer.cache_ttl: %w", err)
	}
	handlerTimeout, err := model.ParseDuration(cfg.Sniffer.HandlerTimeout)
	if err != nil {
		return nil, fmt.Errorf("parsing sniffer.handler_timeout: %w", err)
	}

	st, err := store.New(ttl, cfg.Sniffer.ReportDir)
	if err != nil {
		return nil, fmt.Errorf("initializing result store: %w", err)
	}

	lk := locker.New()
	o := &Orchestrator{
		queue:    queue.New(),
		locker:   lk,
		pool:     pool.New(cfg.Sniffer.MaxConcurrentJobs),
		store:    st,
		registry: registry,
		executor: NewExecutor(lk, st, registry, handlerTimeout),
		active:   make(map[string]*model.Job),
	}
	o.ctx, o.cancel = context.WithCancel(context.WithoutCancel(ctx))

	o.sweeper, err = newSweeper(ttl, st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("initializing eviction sweep: %w", err)
	}
	o.sweeper.Start()

	o.wg.Add(1)
	go o.dispatch()
	return o, nil
}

// Submit validates, creates a queued job and returns its id without blocking.
// An empty domain list means every registered domain.
func (o *Orchestrator) Submit(ctx context.Context, files, domainNames []string, priority int, fix bool) (string, error) {
	if len(files) == 0 {
		return "", model.NewValidationError("files", "must not be empty")
	}
	for _, f := range files {
		if f == "" {
			return "", model.NewValidationError("files", "empty path")
		}
	}
	if len(domainNames) == 0 {
		domainNames = o.registry.Names()
	}
	for _, name := range domainNames {
		if _, ok := o.registry.Get(name); !ok {
			return "", model.NewValidationError("domains", fmt.Sprintf("unknown domain %q", name))
		}
	}

	o.mx.Lock()
	defer o.mx.Unlock()
	if o.closed {
		return "", model.ErrShutdown
	}
	o.seq++
	job := model.NewJob(o.seq, files, domainNames, priority, fix)
	o.active[job.ID()] = job
	o.queue.Push(job)

	slog.InfoContext(ctx, "job submitted",
		"job_id", job.ID(), "files", len(files), "domains", domainNames,
		"priority", priority, "fix", fix)
	return job.ID(), nil
}

// Status reports the current state of a job, active or completed. Terminal
// jobs include the full result record.
func (o *Orchestrator) Status(jobID string) (JobStatus, error) {
	o.mx.Lock()
	job, ok := o.active[jobID]
	o.mx.Unlock()
	if ok {
		st := JobStatus{
			ID:        jobID,
			Status:    job.Status(),
			FileCount: len(job.Files()),
			Domains:   job.Domains(),
		}
		if err := job.Err(); err != nil {
			st.Error = err.Error()
		}
		return st, nil
	}

	rec, ok := o.store.GetJobResult(jobID)
	if !ok {
		return JobStatus{}, fmt.Errorf("status of %s: %w", jobID, model.ErrNotFound)
	}
	return JobStatus{
		ID:        jobID,
		Status:    rec.Status,
		FileCount: len(rec.Files),
		Domains:   rec.Domains,
		Error:     rec.Error,
		Result:    &rec,
	}, nil
}

// Cancel removes a queued job before it is ever dispatched, or flags a
// running job for cooperative cancellation. Returns the status observed at
// cancel time; the caller polls Status to see the terminal transition of a
// running job.
func (o *Orchestrator) Cancel(jobID string) (model.Status, error) {
	if job := o.queue.Remove(jobID); job != nil {
		job.Cancel()
		_ = job.Transition(model.StatusCancelled)
		o.finalize(job)
		slog.Info("queued job cancelled", "job_id", jobID)
		return model.StatusCancelled, nil
	}

	o.mx.Lock()
	job, ok := o.active[jobID]
	o.mx.Unlock()
	if ok {
		job.Cancel()
		slog.Info("job cancellation requested", "job_id", jobID)
		return job.Status(), nil
	}

	if rec, ok := o.store.GetJobResult(jobID); ok {
		// already terminal, nothing to cancel
		return rec.Status, nil
	}
	return "", fmt.Errorf("cancel of %s: %w", jobID, model.ErrNotFound)
}

// QueueMetrics reports pending, active and completed counts.
func (o *Orchestrator) QueueMetrics() Metrics {
	return Metrics{
		Pending:       o.queue.Len(),
		Active:        o.pool.Active(),
		Completed:     o.store.Completed(),
		MaxConcurrent: o.pool.Max(),
	}
}

// Shutdown cancels every active job, waits for executors to reach a terminal
// state, then releases the pool, sweeper and store. Safe to call once.
func (o *Orchestrator) Shutdown() error {
	o.mx.Lock()
	if o.closed {
		o.mx.Unlock()
		return model.ErrShutdown
	}
	o.closed = true
	jobs := make([]*model.Job, 0, len(o.active))
	for _, job := range o.active {
		jobs = append(jobs, job)
	}
	o.mx.Unlock()

	slog.Info("orchestrator shutting down", "active", len(jobs))
	for _, job := range jobs {
		job.Cancel()
	}

	// stop the dispatcher, then cancel whatever never got dispatched
	o.cancel()
	o.queue.Close()
	o.wg.Wait()
	for _, job := range jobs {
		if o.queue.Remove(job.ID()) != nil {
			_ = job.Transition(model.StatusCancelled)
			o.finalize(job)
		}
	}
	o.pool.Wait()

	err := o.sweeper.Shutdown()
	if cerr := o.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// dispatch pulls jobs off the queue under a worker permit until shutdown.
func (o *Orchestrator) dispatch() {
	defer o.wg.Done()
	for {
		job, err := o.queue.Pop(o.ctx)
		if err != nil {
			return
		}
		err = o.pool.Dispatch(o.ctx, func() {
			o.executor.Execute(o.ctx, job)
			o.finalize(job)
		})
		if err != nil {
			// shutdown raced the dispatch; the job keeps its cancel flag
			job.Cancel()
			_ = job.Transition(model.StatusCancelled)
			o.finalize(job)
			return
		}
	}
}

// finalize persists the terminal record and transfers the job from the
// active set to the store.
func (o *Orchestrator) finalize(job *model.Job) {
	o.store.PutJobResult(job.Snapshot())
	o.mx.Lock()
	delete(o.active, job.ID())
	o.mx.Unlock()
}

// newSweeper drives Store.Evict at half the TTL, 30s at minimum.
func newSweeper(ttl time.Duration, st *store.Store) (gocron.Scheduler, error) {
	interval := ttl / 2
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := st.Evict(); n > 0 {
				slog.Debug("evicted expired cache entries", "count", n)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing eviction job: %w", err)
	}
	return s, nil
}
