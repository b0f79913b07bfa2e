package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/ledger-qa/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, store *Store, id string, status jobs.JobStatus) *jobs.AnalysisJob {
	t.Helper()
	var job *jobs.AnalysisJob
	require.Eventually(t, func() bool {
		var err error
		job, err = store.GetJob(context.Background(), id)
		return err == nil && job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func startQueue(t *testing.T, handler jobs.JobHandler) (*Queue, *Store) {
	t.Helper()
	store := NewStore()
	q := NewQueue(10, store, WithWorkers(2), WithBackoff(time.Millisecond))
	require.NoError(t, q.Start(context.Background(), handler))
	t.Cleanup(func() { _ = q.Close() })
	return q, store
}

func TestQueue_PublishFillsDefaults(t *testing.T) {
	q := NewQueue(1, NewStore())
	job := &jobs.AnalysisJob{Question: "total?"}

	require.NoError(t, q.PublishAnalysis(context.Background(), job))

	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)
	assert.Equal(t, jobs.JobTypeAnalyze, job.GetType())
}

func TestQueue_ProcessesJob(t *testing.T) {
	q, store := startQueue(t, func(ctx context.Context, job *jobs.AnalysisJob) (string, error) {
		return "answer to " + job.Question, nil
	})

	job := &jobs.AnalysisJob{Question: "total?"}
	require.NoError(t, q.PublishAnalysis(context.Background(), job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "answer to total?", done.Answer)
	assert.Empty(t, done.Error)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.True(t, done.IsFinal())
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	q, store := startQueue(t, func(ctx context.Context, job *jobs.AnalysisJob) (string, error) {
		if attempts.Add(1) < 3 {
			return "", errors.New("model overloaded")
		}
		return "ok", nil
	})

	job := &jobs.AnalysisJob{Question: "trend?"}
	require.NoError(t, q.PublishAnalysis(context.Background(), job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Equal(t, "ok", done.Answer)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	q, store := startQueue(t, func(ctx context.Context, job *jobs.AnalysisJob) (string, error) {
		attempts.Add(1)
		return "", errors.New("quota exceeded")
	})

	job := &jobs.AnalysisJob{Question: "trend?", MaxRetries: 1}
	require.NoError(t, q.PublishAnalysis(context.Background(), job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "quota exceeded", failed.Error)
	assert.Equal(t, 1, failed.RetryCount)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, NewStore())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close(), "closing twice is harmless")

	assert.Error(t, q.PublishAnalysis(context.Background(), &jobs.AnalysisJob{Question: "x"}))
	assert.Error(t, q.Start(context.Background(), func(ctx context.Context, job *jobs.AnalysisJob) (string, error) {
		return "", nil
	}))
}

func TestQueue_PublishRespectsContext(t *testing.T) {
	q := NewQueue(0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := q.PublishAnalysis(ctx, &jobs.AnalysisJob{Question: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
