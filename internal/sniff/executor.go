package sniff

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raf-andrew/sniffer/internal/domains"
	"github.com/raf-andrew/sniffer/internal/locker"
	"github.com/raf-andrew/sniffer/internal/log"
	"github.com/raf-andrew/sniffer/internal/model"
	"github.com/raf-andrew/sniffer/internal/store"
)

// Executor drives one job at a time to a terminal state: files strictly in
// order, domains strictly in order within a file, file lock before domain
// lock. A handler failure becomes a failed Result and the job keeps going;
// only a failure of the scheduling machinery itself (lock acquisition) marks
// the whole job failed.
type Executor struct {
	locker         *locker.Manager
	store          *store.Store
	registry       *domains.Registry
	handlerTimeout time.Duration // 0 = unbounded
}

func NewExecutor(lk *locker.Manager, st *store.Store, reg *domains.Registry, handlerTimeout time.Duration) *Executor {
	return &Executor{
		locker:         lk,
		store:          st,
		registry:       reg,
		handlerTimeout: handlerTimeout,
	}
}

// Execute runs the job until terminal. The caller owns dispatching and
// persisting the terminal record.
func (e *Executor) Execute(ctx context.Context, job *model.Job) {
	ctx = log.ContextAttrs(ctx, slog.String("job_id", job.ID()))

	// cancelled after dispatch but before any work: no results recorded
	if job.Cancelled() {
		_ = job.Transition(model.StatusCancelled)
		slog.InfoContext(ctx, "job cancelled before start")
		return
	}

	if err := job.Transition(model.StatusRunning); err != nil {
		job.Fail(err)
		return
	}
	slog.InfoContext(ctx, "job running",
		"files", len(job.Files()), "domains", job.Domains(), "priority", job.Priority())

	var execErr error
	for _, path := range job.Files() {
		if err := e.processFile(ctx, job, path); err != nil {
			execErr = err
			break
		}
		// Cooperative cancellation, sampled only here at the file boundary.
		// The file lock is already released; results recorded so far stay.
		if job.Cancelled() || ctx.Err() != nil {
			break
		}
	}

	switch {
	case job.Cancelled() || (execErr == nil && ctx.Err() != nil):
		_ = job.Transition(model.StatusCancelled)
		slog.InfoContext(ctx, "job cancelled", "results", len(job.Results()))
	case execErr != nil:
		job.Fail(execErr)
		_ = job.Transition(model.StatusFailed)
		slog.ErrorContext(ctx, "job failed", "error", execErr)
	default:
		_ = job.Transition(model.StatusCompleted)
		slog.InfoContext(ctx, "job completed", "results", len(job.Results()))
	}
}

// processFile holds the file lock for the whole files × domains inner loop so
// the sniff and fix phases see a stable file.
func (e *Executor) processFile(ctx context.Context, job *model.Job, path string) error {
	ctx = log.ContextAttrs(ctx, slog.String("path", path))

	fileTok, err := e.locker.AcquireFile(ctx, path)
	if err != nil {
		return fmt.Errorf("file %s: %w", path, err)
	}
	defer fileTok.Release()

	for _, domain := range job.Domains() {
		res, hit := e.store.Get(path, domain)
		if hit {
			res.Cached = true
			slog.DebugContext(ctx, "cache hit", "domain", domain)
		} else {
			res = e.sniff(ctx, domain, path)
			if !res.Failed() {
				e.store.Put(res)
			}
		}
		job.RecordResult(model.ResultKey{Path: path, Domain: domain}, res)

		if job.Fix() && !res.Failed() && len(res.FixableIssues()) > 0 {
			e.fix(ctx, domain, path, res.FixableIssues())
		}
	}
	return nil
}

// sniff invokes one handler under the domain lock. Every failure mode of the
// handler (error, panic, timeout) is downgraded to data: a failed Result.
func (e *Executor) sniff(ctx context.Context, domain, path string) model.Result {
	handler, ok := e.registry.Get(domain)
	if !ok {
		// submissions are validated, so this is a registry bug
		return model.FailedResult(path, domain, fmt.Errorf("no handler registered for domain %q", domain))
	}

	tok, err := e.locker.AcquireDomain(ctx, domain)
	if err != nil {
		return model.FailedResult(path, domain, err)
	}
	defer tok.Release()

	res, err := e.callSniff(ctx, handler, path)
	if err != nil {
		slog.WarnContext(ctx, "handler failed", "domain", domain, "error", err)
		return model.FailedResult(path, domain, err)
	}
	res.Path = path
	res.Domain = domain
	if res.Outcome == "" {
		res.Outcome = model.OutcomeSuccess
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	return res
}

func (e *Executor) callSniff(ctx context.Context, handler domains.Handler, path string) (res model.Result, err error) {
	if e.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.handlerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.SniffFile(ctx, path)
}

// fix runs the handler's fix operation for the fixable issues of one result.
// The domain lock is reacquired for the call; the file lock is already held by
// processFile. Fix failures are logged, never fatal.
func (e *Executor) fix(ctx context.Context, domain, path string, issues []model.Issue) {
	handler, ok := e.registry.Get(domain)
	if !ok {
		return
	}

	tok, err := e.locker.AcquireDomain(ctx, domain)
	if err != nil {
		slog.WarnContext(ctx, "fix skipped", "domain", domain, "error", err)
		return
	}
	defer tok.Release()

	fixed, err := e.callFix(ctx, handler, path, issues)
	if err != nil {
		slog.WarnContext(ctx, "fix failed", "domain", domain, "error", err)
		return
	}
	slog.InfoContext(ctx, "fix applied",
		"domain", domain, "applied", fixed.Applied, "remaining", fixed.Remaining)
}

func (e *Executor) callFix(ctx context.Context, handler domains.Handler, path string, issues []model.Issue) (res model.FixResult, err error) {
	if e.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.handlerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.FixIssues(ctx, path, issues)
}
