// Package pool bounds how many job executors run at once. It is a pure
// counting permit pool and holds no job-specific state; per-domain
// serialization is the locker's business, not the pool's.
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	max    int64
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	active atomic.Int64
}

func New(maxConcurrent int) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{
		max: int64(maxConcurrent),
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Dispatch blocks until a permit is free, then runs fn on its own goroutine.
// The permit is released when fn returns, panics included.
func (p *Pool) Dispatch(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquiring worker permit: %w", err)
	}
	p.active.Add(1)
	p.wg.Add(1)
	go func() {
		defer func() {
			p.active.Add(-1)
			p.sem.Release(1)
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Active returns the number of currently held permits.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Max returns the permit bound.
func (p *Pool) Max() int {
	return int(p.max)
}

// Wait blocks until every dispatched fn has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
