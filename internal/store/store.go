// Package store holds terminal job records and a time-bounded cache of
// per-(file, domain) results. Eviction is purely TTL driven, there is no
// capacity bound. Records are also written through as JSON under the report
// directory when one is configured: one file per job id, one per cache key.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/raf-andrew/sniffer/internal/model"
)

const (
	jobsDir  = "jobs"
	cacheDir = "cache"
)

type entry struct {
	result model.Result
	stamp  time.Time
}

type Store struct {
	ttl   time.Duration
	mx    sync.RWMutex
	cache map[model.ResultKey]entry
	jobs  map[string]model.JobRecord
	root  *os.Root // nil when persistence is disabled
}

// New creates a store with the given cache TTL. reportDir may be empty, in
// which case nothing is persisted to disk.
func New(ttl time.Duration, reportDir string) (*Store, error) {
	s := &Store{
		ttl:   ttl,
		cache: make(map[model.ResultKey]entry),
		jobs:  make(map[string]model.JobRecord),
	}
	if reportDir == "" {
		return s, nil
	}

	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report dir: %w", err)
	}
	root, err := os.OpenRoot(reportDir)
	if err != nil {
		return nil, fmt.Errorf("opening report dir: %w", err)
	}
	for _, dir := range []string{jobsDir, cacheDir} {
		if err := root.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating report subdir %s: %w", dir, err)
		}
	}
	s.root = root
	return s, nil
}

// TTL returns the configured cache time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put stamps and stores the result under its (file, domain) key.
func (s *Store) Put(res model.Result) {
	key := res.Key()
	now := time.Now()

	s.mx.Lock()
	s.cache[key] = entry{result: res, stamp: now}
	s.mx.Unlock()

	s.persist(cachePath(key), res)
}

// Get returns a cache hit only if the entry exists and is within its TTL.
// Expired entries are never served.
func (s *Store) Get(path, domain string) (model.Result, bool) {
	s.mx.RLock()
	e, ok := s.cache[model.ResultKey{Path: path, Domain: domain}]
	s.mx.RUnlock()
	if !ok || time.Since(e.stamp) >= s.ttl {
		return model.Result{}, false
	}
	return e.result, true
}

// PutJobResult persists the terminal state of a job. Ownership of the record
// transfers here; it is read-only from now on.
func (s *Store) PutJobResult(rec model.JobRecord) {
	s.mx.Lock()
	s.jobs[rec.ID] = rec
	s.mx.Unlock()

	s.persist(jobsDir+"/"+rec.ID+".json", rec)
}

// GetJobResult retrieves a terminal job record.
func (s *Store) GetJobResult(jobID string) (model.JobRecord, bool) {
	s.mx.RLock()
	defer s.mx.RUnlock()
	rec, ok := s.jobs[jobID]
	return rec, ok
}

// Completed returns how many terminal job records the store holds.
func (s *Store) Completed() int {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return len(s.jobs)
}

// Evict drops expired cache entries and their disk records, returning how
// many were removed. Invoked periodically by the orchestrator's sweep.
func (s *Store) Evict() int {
	now := time.Now()

	s.mx.Lock()
	var expired []model.ResultKey
	for key, e := range s.cache {
		if now.Sub(e.stamp) >= s.ttl {
			expired = append(expired, key)
			delete(s.cache, key)
		}
	}
	s.mx.Unlock()

	if s.root != nil {
		for _, key := range expired {
			if err := s.root.Remove(cachePath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("removing expired cache record", "key", key.String(), "error", err)
			}
		}
	}
	return len(expired)
}

// Close releases the report directory handle.
func (s *Store) Close() error {
	if s.root == nil {
		return nil
	}
	return s.root.Close()
}

func (s *Store) persist(path string, v any) {
	if s.root == nil {
		return
	}
	f, err := s.root.Create(path)
	if err != nil {
		slog.Warn("creating report record", "path", path, "error", err)
		return
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Warn("writing report record", "path", path, "error", err)
	}
	if err := f.Close(); err != nil {
		slog.Warn("closing report record", "path", path, "error", err)
	}
}

func cachePath(key model.ResultKey) string {
	sum := sha256.Sum256([]byte(key.String()))
	return cacheDir + "/" + hex.EncodeToString(sum[:8]) + ".json"
}
