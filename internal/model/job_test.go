package model_test

import (
	"errors"
	"testing"

	"github.com/raf-andrew/sniffer/internal/model"

	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		from model.Status
		to   model.Status
		ok   bool
	}{
		{model.StatusQueued, model.StatusRunning, true},
		{model.StatusQueued, model.StatusCancelled, true},
		{model.StatusQueued, model.StatusCompleted, false},
		{model.StatusRunning, model.StatusCompleted, true},
		{model.StatusRunning, model.StatusFailed, true},
		{model.StatusRunning, model.StatusCancelled, true},
		{model.StatusRunning, model.StatusQueued, false},
		{model.StatusCompleted, model.StatusRunning, false},
		{model.StatusCancelled, model.StatusRunning, false},
		{model.StatusFailed, model.StatusCompleted, false},
	}

	for _, tt := range testCases {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			err := tt.from.ValidateTransition(tt.to)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestJob(t *testing.T) {
	t.Parallel()

	job := model.NewJob(42, []string{"a.py", "b.py"}, []string{"security", "style"}, 1, false)
	require.NotEmpty(t, job.ID())
	require.Equal(t, uint64(42), job.Seq())
	require.Equal(t, model.StatusQueued, job.Status())
	require.False(t, job.Cancelled())
	require.False(t, job.Status().Terminal())

	t.Run("inputs are copied", func(t *testing.T) {
		files := job.Files()
		files[0] = "mutated"
		require.Equal(t, []string{"a.py", "b.py"}, job.Files())
	})

	t.Run("lifecycle", func(t *testing.T) {
		require.NoError(t, job.Transition(model.StatusRunning))

		res := model.Result{Path: "a.py", Domain: "security", Outcome: model.OutcomeSuccess}
		job.RecordResult(res.Key(), res)
		job.RecordResult(model.ResultKey{Path: "b.py", Domain: "security"},
			model.FailedResult("b.py", "security", errors.New("boom")))

		require.NoError(t, job.Transition(model.StatusCompleted))
		require.True(t, job.Status().Terminal())
		require.Error(t, job.Transition(model.StatusRunning))
	})

	t.Run("snapshot", func(t *testing.T) {
		rec := job.Snapshot()
		require.Equal(t, job.ID(), rec.ID)
		require.Equal(t, model.StatusCompleted, rec.Status)
		require.Len(t, rec.Results, 2)
		// ordered by domain then path
		require.Equal(t, "a.py", rec.Results[0].Path)
		require.Equal(t, "b.py", rec.Results[1].Path)
		require.Equal(t, "boom", rec.Results[1].Error)
		require.NotZero(t, rec.FinishedAt)
	})
}

func TestFailedResult(t *testing.T) {
	t.Parallel()
	res := model.FailedResult("x.go", "docs", errors.New("handler exploded"))
	require.True(t, res.Failed())
	require.Equal(t, "handler exploded", res.Error)
	require.NotZero(t, res.Timestamp)
	require.Empty(t, res.FixableIssues())
}
