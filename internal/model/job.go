package model

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a sniff job. Transitions are
// monotonic: queued → running → {completed | failed | cancelled}, and no
// transition ever leaves a terminal state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) isValidTransition(target Status) bool {
	switch s {
	case StatusQueued:
		return target == StatusRunning || target == StatusCancelled
	case StatusRunning:
		return target.Terminal()
	default:
		return false
	}
}

// ValidateTransition checks the lifecycle rules and returns an error for an
// invalid change.
func (s Status) ValidateTransition(target Status) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("invalid job status transition from %s to %s", s, target)
	}
	return nil
}

// ResultKey addresses one (file, domain) result inside a job.
type ResultKey struct {
	Path   string
	Domain string
}

func (k ResultKey) String() string { return k.Domain + ":" + k.Path }

// Job is one submitted request to sniff a set of files across a set of
// domains. It is mutated only by the executor driving it; once terminal it is
// read-only. Callers observe it through Status, Snapshot and Cancelled.
type Job struct {
	id        string
	seq       uint64
	files     []string
	domains   []string
	priority  int
	fix       bool
	createdAt time.Time

	mx        sync.RWMutex
	status    Status
	results   map[ResultKey]Result
	err       error
	finished  time.Time
	cancelled atomic.Bool
}

// NewJob creates a queued job. seq is the submission sequence number used as
// the priority tie-break; it must be assigned monotonically by the caller.
func NewJob(seq uint64, files, domains []string, priority int, fix bool) *Job {
	return &Job{
		id:        uuid.NewString(),
		seq:       seq,
		files:     append([]string(nil), files...),
		domains:   append([]string(nil), domains...),
		priority:  priority,
		fix:       fix,
		createdAt: time.Now().UTC(),
		status:    StatusQueued,
		results:   make(map[ResultKey]Result, len(files)*len(domains)),
	}
}

func (j *Job) ID() string           { return j.id }
func (j *Job) Seq() uint64          { return j.seq }
func (j *Job) Priority() int        { return j.priority }
func (j *Job) Fix() bool            { return j.fix }
func (j *Job) CreatedAt() time.Time { return j.createdAt }
func (j *Job) Files() []string      { return append([]string(nil), j.files...) }
func (j *Job) Domains() []string    { return append([]string(nil), j.domains...) }

func (j *Job) Status() Status {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return j.status
}

// Transition moves the job to target, enforcing the lifecycle rules.
func (j *Job) Transition(target Status) error {
	j.mx.Lock()
	defer j.mx.Unlock()
	if err := j.status.ValidateTransition(target); err != nil {
		return err
	}
	j.status = target
	if target.Terminal() {
		j.finished = time.Now().UTC()
	}
	return nil
}

// Cancel flips the cooperative cancellation flag. The executor samples it at
// file boundaries; an in-flight handler call is never preempted.
func (j *Job) Cancel()         { j.cancelled.Store(true) }
func (j *Job) Cancelled() bool { return j.cancelled.Load() }

// RecordResult stores the result for one (file, domain) pair. Called only by
// the executor that owns the job.
func (j *Job) RecordResult(key ResultKey, res Result) {
	j.mx.Lock()
	defer j.mx.Unlock()
	j.results[key] = res
}

// Results returns a copy of the recorded result mapping.
func (j *Job) Results() map[ResultKey]Result {
	j.mx.RLock()
	defer j.mx.RUnlock()
	out := make(map[ResultKey]Result, len(j.results))
	for k, v := range j.results {
		out[k] = v
	}
	return out
}

// Fail records a job-level error. Handler failures are recorded as failed
// Results instead; this is only for errors in the scheduling machinery itself.
func (j *Job) Fail(err error) {
	j.mx.Lock()
	defer j.mx.Unlock()
	j.err = err
}

func (j *Job) Err() error {
	j.mx.RLock()
	defer j.mx.RUnlock()
	return j.err
}

// JobRecord is the serializable snapshot of a job, also the persisted form.
type JobRecord struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Files      []string  `json:"files"`
	Domains    []string  `json:"domains"`
	Priority   int       `json:"priority"`
	Fix        bool      `json:"fix"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`
	Results    []Result  `json:"results,omitempty"`
}

// Snapshot captures the current state of the job for status reporting and
// persistence. Results are ordered by domain then path for stable output.
func (j *Job) Snapshot() JobRecord {
	j.mx.RLock()
	defer j.mx.RUnlock()

	rec := JobRecord{
		ID:         j.id,
		Status:     j.status,
		Files:      append([]string(nil), j.files...),
		Domains:    append([]string(nil), j.domains...),
		Priority:   j.priority,
		Fix:        j.fix,
		CreatedAt:  j.createdAt,
		FinishedAt: j.finished,
	}
	if j.err != nil {
		rec.Error = j.err.Error()
	}
	rec.Results = make([]Result, 0, len(j.results))
	for _, res := range j.results {
		rec.Results = append(rec.Results, res)
	}
	sortResults(rec.Results)
	return rec
}
