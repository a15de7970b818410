package operations_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations/testutil"
)

func waitForJob(t *testing.T, q *operations.JobQueue, id string) *operations.Job {
	t.Helper()
	var job *operations.Job
	require.Eventually(t, func() bool {
		j, err := q.GetJob(id)
		if err != nil {
			return false
		}
		job = j
		return j.IsFinished()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func startQueue(t *testing.T, exec operations.Executor) *operations.JobQueue {
	t.Helper()
	q := operations.NewJobQueue(1, operations.NewMemoryJobStore(), exec, nil)
	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop(time.Second) })
	return q
}

func TestJobQueueRunsSubmittedJob(t *testing.T) {
	exec := &testutil.MockExecutor{}
	q := startQueue(t, exec)

	completed := make(chan string, 1)
	q.OnComplete = func(ctx context.Context, job *operations.Job) { completed <- job.ID }

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	job, err := q.Submit(ctx, operations.OperationRequest{Step: operations.StepIDMerge})
	require.NoError(t, err)
	assert.Equal(t, operations.JobStatusPending, job.Status)
	assert.Equal(t, "req-1", job.RequestID)

	done := waitForJob(t, q, job.ID)
	assert.Equal(t, operations.JobStatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, job.OperationID, done.Result.ID)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	reqs := exec.GetRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, operations.StepIDMerge, reqs[0].Step)
	assert.Equal(t, job.OperationID, reqs[0].ID)

	select {
	case id := <-completed:
		assert.Equal(t, job.ID, id)
	case <-time.After(time.Second):
		t.Fatal("OnComplete not called")
	}
}

func TestJobQueueFullPipelineJob(t *testing.T) {
	exec := &testutil.MockExecutor{}
	q := startQueue(t, exec)

	job, err := q.Submit(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, operations.StepIDFullPipeline, job.Step)

	waitForJob(t, q, job.ID)
	reqs := exec.GetRequests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].RunsFullPipeline())
}

func TestJobQueueFailedJob(t *testing.T) {
	exec := &testutil.MockExecutor{
		ExecuteFunc: func(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
			return &operations.OperationResponse{ID: req.ID, Status: operations.OperationStatusFailed}, errors.New("merge failed")
		},
	}
	q := startQueue(t, exec)

	job, err := q.Submit(context.Background(), operations.OperationRequest{Step: operations.StepIDMerge})
	require.NoError(t, err)

	done := waitForJob(t, q, job.ID)
	assert.Equal(t, operations.JobStatusFailed, done.Status)
	assert.Equal(t, "merge failed", done.Error)
}

func TestJobQueueCancelledRun(t *testing.T) {
	exec := &testutil.MockExecutor{
		ExecuteFunc: func(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
			return nil, operations.NewCancellationError(operations.StepIDClean, context.Canceled)
		},
	}
	q := startQueue(t, exec)

	job, err := q.Submit(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, operations.JobStatusCancelled, waitForJob(t, q, job.ID).Status)
}

func TestJobQueueRecoversFromPanic(t *testing.T) {
	exec := &testutil.MockExecutor{
		ExecuteFunc: func(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
			panic("unexpected")
		},
	}
	q := startQueue(t, exec)

	job, err := q.Submit(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)

	done := waitForJob(t, q, job.ID)
	assert.Equal(t, operations.JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "panicked")
}

func TestJobQueueCancelPendingJob(t *testing.T) {
	exec := &testutil.MockExecutor{}
	// not started, so the job stays pending
	q := operations.NewJobQueue(1, operations.NewMemoryJobStore(), exec, nil)

	job, err := q.Submit(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)
	require.NoError(t, q.CancelJob(job.ID))

	got, err := q.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, operations.JobStatusCancelled, got.Status)

	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop(time.Second) })
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, exec.GetRequests())
}

func TestJobQueueCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	exec := &testutil.MockExecutor{
		ExecuteFunc: func(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
			close(started)
			<-release
			return &operations.OperationResponse{ID: req.ID}, nil
		},
	}
	exec.CancelFunc = func(id string) error {
		close(release)
		return nil
	}
	q := startQueue(t, exec)

	job, err := q.Submit(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)
	<-started

	require.Eventually(t, func() bool {
		j, err := q.GetJob(job.ID)
		return err == nil && j.Status == operations.JobStatusRunning
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, q.CancelJob(job.ID))
	waitForJob(t, q, job.ID)
	assert.Equal(t, []string{job.OperationID}, exec.Cancelled)
}

func TestJobQueueCancelFinishedJob(t *testing.T) {
	q := startQueue(t, &testutil.MockExecutor{})

	job, err := q.Submit(context.Background(), operations.OperationRequest{})
	require.NoError(t, err)
	waitForJob(t, q, job.ID)

	assert.ErrorIs(t, q.CancelJob(job.ID), operations.ErrJobNotCancellable)
}

func TestJobQueueUnknownJob(t *testing.T) {
	q := startQueue(t, &testutil.MockExecutor{})
	_, err := q.GetJob("missing")
	testutil.AssertErrorType(t, err, operations.ErrorTypeNotFound)
}

func TestMemoryJobStoreList(t *testing.T) {
	store := operations.NewMemoryJobStore()
	base := time.Now().Add(-time.Hour)
	for i, st := range []operations.JobStatus{operations.JobStatusCompleted, operations.JobStatusFailed, operations.JobStatusCompleted} {
		require.NoError(t, store.CreateJob(&operations.Job{
			ID:        string(rune('a' + i)),
			Step:      operations.StepIDMerge,
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.ListJobs(operations.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	completed, err := store.ListJobs(operations.JobFilter{Status: operations.JobStatusCompleted, Limit: 1})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "c", completed[0].ID)

	assert.Error(t, store.CreateJob(&operations.Job{ID: "a"}))
	assert.Equal(t, 3, store.CleanupOldJobs(time.Minute))
}
