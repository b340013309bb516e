// Package locker issues per-file and per-domain mutual exclusion tokens.
//
// The two keyspaces are independent. The global acquisition order is always
// file before domain; taking them the other way around is a programming error
// and will deadlock, there is no runtime detection for it.
package locker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Token represents exclusive ownership of one key for the duration of one
// operation. Release is idempotent and must be reachable from every exit path.
type Token struct {
	release func()
	once    sync.Once
}

func (t *Token) Release() {
	t.once.Do(t.release)
}

// Manager maps file paths and domain names lazily to mutual exclusion
// primitives. Entries are created on first reference and never removed, which
// avoids the race between release-and-delete and a fresh acquire on the same
// key.
type Manager struct {
	files   keyspace
	domains keyspace
}

func New() *Manager {
	return &Manager{
		files:   keyspace{locks: make(map[string]*semaphore.Weighted)},
		domains: keyspace{locks: make(map[string]*semaphore.Weighted)},
	}
}

// AcquireFile blocks until the file lock for path is available.
func (m *Manager) AcquireFile(ctx context.Context, path string) (*Token, error) {
	t, err := m.files.acquire(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("acquiring file lock %s: %w", path, err)
	}
	return t, nil
}

// AcquireDomain blocks until the domain lock for name is available. The caller
// must already hold the file lock for the operation.
func (m *Manager) AcquireDomain(ctx context.Context, name string) (*Token, error) {
	t, err := m.domains.acquire(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("acquiring domain lock %s: %w", name, err)
	}
	return t, nil
}

type keyspace struct {
	mx    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func (k *keyspace) acquire(ctx context.Context, key string) (*Token, error) {
	k.mx.Lock()
	sem, ok := k.locks[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		k.locks[key] = sem
	}
	k.mx.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Token{release: func() { sem.Release(1) }}, nil
}
