package store_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/raf-andrew/sniffer/internal/model"
	"github.com/raf-andrew/sniffer/internal/store"

	"github.com/stretchr/testify/require"
)

func result(path, domain string) model.Result {
	return model.Result{
		Path:      path,
		Domain:    domain,
		Outcome:   model.OutcomeSuccess,
		Timestamp: time.Now().UTC(),
	}
}

func TestCacheHit(t *testing.T) {
	t.Parallel()

	s, err := store.New(15*time.Minute, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, ok := s.Get("a.py", "security")
	require.False(t, ok)

	s.Put(result("a.py", "security"))
	got, ok := s.Get("a.py", "security")
	require.True(t, ok)
	require.Equal(t, "a.py", got.Path)

	// same path, different domain is a distinct key
	_, ok = s.Get("a.py", "style")
	require.False(t, ok)
}

func TestCacheTTL(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		s, err := store.New(time.Minute, "")
		require.NoError(t, err)

		s.Put(result("a.py", "security"))

		time.Sleep(59 * time.Second)
		_, ok := s.Get("a.py", "security")
		require.True(t, ok, "entry within TTL must be served")

		time.Sleep(2 * time.Second)
		_, ok = s.Get("a.py", "security")
		require.False(t, ok, "expired entry must never be served")
	})
}

func TestEvict(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		s, err := store.New(time.Minute, "")
		require.NoError(t, err)

		s.Put(result("a.py", "security"))
		s.Put(result("b.py", "security"))
		require.Zero(t, s.Evict())

		time.Sleep(2 * time.Minute)
		s.Put(result("c.py", "security"))
		require.Equal(t, 2, s.Evict())
		_, ok := s.Get("c.py", "security")
		require.True(t, ok)
	})
}

func TestJobResults(t *testing.T) {
	t.Parallel()

	s, err := store.New(time.Minute, "")
	require.NoError(t, err)

	_, ok := s.GetJobResult("nope")
	require.False(t, ok)
	require.Zero(t, s.Completed())

	rec := model.JobRecord{ID: "job-1", Status: model.StatusCompleted}
	s.PutJobResult(rec)

	got, ok := s.GetJobResult("job-1")
	require.True(t, ok)
	require.Equal(t, model.StatusCompleted, got.Status)
	require.Equal(t, 1, s.Completed())
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := store.New(time.Minute, dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	s.Put(result("a.py", "security"))
	s.PutJobResult(model.JobRecord{ID: "job-1", Status: model.StatusCompleted})

	t.Run("job record on disk", func(t *testing.T) {
		raw, err := os.ReadFile(filepath.Join(dir, "jobs", "job-1.json"))
		require.NoError(t, err)
		var rec model.JobRecord
		require.NoError(t, json.Unmarshal(raw, &rec))
		require.Equal(t, "job-1", rec.ID)
	})

	t.Run("one record per cache key", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(dir, "cache"))
		require.NoError(t, err)
		require.Len(t, entries, 1)

		// same key overwrites, new key adds
		s.Put(result("a.py", "security"))
		s.Put(result("b.py", "security"))
		entries, err = os.ReadDir(filepath.Join(dir, "cache"))
		require.NoError(t, err)
		require.Len(t, entries, 2)
	})
}
