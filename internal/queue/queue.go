// Package queue provides the blocking priority queue feeding the worker pool.
// Jobs are ordered by priority (lower first), ties broken by the submission
// sequence number so ordering stays stable under concurrent pushes.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"

	"github.com/raf-andrew/sniffer/internal/model"
)

// ErrClosed is returned by Pop once the queue has been closed and drained.
var ErrClosed = errors.New("queue closed")

type Queue struct {
	mx     sync.Mutex
	cond   *sync.Cond
	items  jobHeap
	closed bool
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mx)
	return q
}

// Push enqueues a job and wakes one blocked Pop.
func (q *Queue) Push(job *model.Job) {
	q.mx.Lock()
	defer q.mx.Unlock()
	heap.Push(&q.items, job)
	q.cond.Signal()
}

// Pop blocks until a job is available, then removes and returns the most
// urgent one. A job is returned at most once. Returns ctx.Err() when the
// context ends or ErrClosed after Close.
func (q *Queue) Pop(ctx context.Context) (*model.Job, error) {
	// Broadcast is safe without holding the lock; waiters re-check ctx.
	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	q.mx.Lock()
	defer q.mx.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if q.items.Len() > 0 {
			return heap.Pop(&q.items).(*model.Job), nil
		}
		if q.closed {
			return nil, ErrClosed
		}
		q.cond.Wait()
	}
}

// Len returns the pending count without blocking.
func (q *Queue) Len() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return q.items.Len()
}

// Remove takes a still-queued job out of the queue, returning it, or nil when
// the job is not queued (already dispatched or unknown). Used to cancel a job
// before it is ever dispatched.
func (q *Queue) Remove(jobID string) *model.Job {
	q.mx.Lock()
	defer q.mx.Unlock()
	for i, job := range q.items {
		if job.ID() == jobID {
			return heap.Remove(&q.items, i).(*model.Job)
		}
	}
	return nil
}

// Close wakes all blocked Pops; pending jobs can still be popped, after that
// Pop returns ErrClosed.
func (q *Queue) Close() {
	q.mx.Lock()
	defer q.mx.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

type jobHeap []*model.Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority() != h[j].Priority() {
		return h[i].Priority() < h[j].Priority()
	}
	return h[i].Seq() < h[j].Seq()
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*model.Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
