package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Sachi-35/crop-yield-prediction/internal/infrastructure"
)

// Job queue errors
var (
	ErrQueueFull         = errors.New("job queue is full")
	ErrJobNotCancellable = errors.New("job cannot be cancelled")
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a pipeline run submitted for background execution
type Job struct {
	ID          string             `json:"id"`
	OperationID string             `json:"operation_id"`
	Step        string             `json:"step"`
	Status      JobStatus          `json:"status"`
	Error       string             `json:"error,omitempty"`
	RequestID   string             `json:"request_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Result      *OperationResponse `json:"result,omitempty"`
}

// IsFinished reports whether the job reached a final status
func (j *Job) IsFinished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobStore persists jobs
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
}

// JobFilter for querying jobs
type JobFilter struct {
	Status JobStatus
	Step   string
	Since  time.Time
	Limit  int
}

// Executor runs pipeline requests
type Executor interface {
	Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error)
	CancelOperation(id string) error
}

// JobQueue runs submitted pipeline requests on background workers
type JobQueue struct {
	jobs     chan *Job
	workers  int
	wg       sync.WaitGroup
	store    JobStore
	executor Executor
	logger   *slog.Logger
	shutdown chan struct{}
	stopOnce sync.Once

	// OnComplete, when set, is called after every successful job
	OnComplete func(ctx context.Context, job *Job)
}

// NewJobQueue creates a new job queue
func NewJobQueue(workers int, store JobStore, executor Executor, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:     make(chan *Job, workers*8),
		workers:  workers,
		store:    store,
		executor: executor,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
	}
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("job_queue_starting", slog.Int("workers", q.workers))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop signals workers to exit and waits for running jobs up to timeout
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.stopOnce.Do(func() { close(q.shutdown) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job_queue_stopped")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job_queue_stop_timeout", slog.Duration("timeout", timeout))
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Submit enqueues a request and returns the pending job
func (q *JobQueue) Submit(ctx context.Context, req OperationRequest) (*Job, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	step := req.Step
	if req.RunsFullPipeline() {
		step = StepIDFullPipeline
	}

	job := &Job{
		ID:          uuid.New().String(),
		OperationID: req.ID,
		Step:        step,
		Status:      JobStatusPending,
		RequestID:   middleware.GetReqID(ctx),
		CreatedAt:   time.Now(),
	}
	if err := q.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobs <- job:
		q.logger.InfoContext(ctx, "job_enqueued",
			slog.String("job_id", job.ID),
			slog.String("step", job.Step))
		return job.copy(), nil
	default:
		job.Status = JobStatusFailed
		job.Error = ErrQueueFull.Error()
		q.updateJob(job)
		return nil, ErrQueueFull
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) error {
	job, err := q.store.GetJob(id)
	if err != nil {
		return err
	}

	switch job.Status {
	case JobStatusPending:
		now := time.Now()
		job.Status = JobStatusCancelled
		job.CompletedAt = &now
		return q.store.UpdateJob(job)
	case JobStatusRunning:
		return q.executor.CancelOperation(job.OperationID)
	default:
		return fmt.Errorf("%w: job %s is %s", ErrJobNotCancellable, id, job.Status)
	}
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

func (q *JobQueue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	// a job cancelled while queued is left as is
	if current, err := q.store.GetJob(job.ID); err == nil && current.Status == JobStatusCancelled {
		return
	}

	if job.RequestID != "" {
		ctx = context.WithValue(ctx, middleware.RequestIDKey, job.RequestID)
		ctx = infrastructure.WithTraceID(ctx, job.RequestID)
	}
	logger = logger.With(
		slog.String("job_id", job.ID),
		slog.String("operation_id", job.OperationID))

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "job_panicked", slog.Any("panic", r))
			q.finish(job, JobStatusFailed, fmt.Errorf("job panicked: %v", r), nil)
		}
	}()

	now := time.Now()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	q.updateJob(job)
	logger.InfoContext(ctx, "job_started")

	req := OperationRequest{ID: job.OperationID}
	if job.Step != StepIDFullPipeline {
		req.Step = job.Step
	}
	resp, err := q.executor.Execute(ctx, req)

	status := JobStatusCompleted
	switch {
	case err == nil:
	case GetErrorType(err) == ErrorTypeCancellation:
		status = JobStatusCancelled
	default:
		status = JobStatusFailed
	}
	q.finish(job, status, err, resp)
	logger.InfoContext(ctx, "job_finished", slog.String("status", string(status)))

	if status == JobStatusCompleted && q.OnComplete != nil {
		q.OnComplete(ctx, job.copy())
	}
}

func (q *JobQueue) finish(job *Job, status JobStatus, err error, resp *OperationResponse) {
	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	job.Result = resp
	if err != nil {
		job.Error = err.Error()
	}
	q.updateJob(job)
}

func (q *JobQueue) updateJob(job *Job) {
	if err := q.store.UpdateJob(job.copy()); err != nil {
		q.logger.Error("job_update_failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
}

// Stats returns queue statistics
func (q *JobQueue) Stats() map[string]int {
	return map[string]int{
		"workers":    q.workers,
		"queue_size": len(q.jobs),
		"queue_cap":  cap(q.jobs),
	}
}

func (j *Job) copy() *Job {
	c := *j
	return &c
}
