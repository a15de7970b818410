package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
)

// Pipeline runs and describes pipeline steps
type Pipeline interface {
	Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error)
	Steps() ([]operations.StepDescriptor, error)
}

// JobRunner queues pipeline requests for background execution
type JobRunner interface {
	Submit(ctx context.Context, req operations.OperationRequest) (*operations.Job, error)
	GetJob(id string) (*operations.Job, error)
	ListJobs(filter operations.JobFilter) ([]*operations.Job, error)
	CancelJob(id string) error
}

// CatalogReloader refreshes the catalog once a run rebuilt the master table
type CatalogReloader interface {
	Reload(ctx context.Context) error
}

// OperationService exposes the pipeline to transports. Synchronous runs go
// straight to the manager, asynchronous ones through the job queue.
type OperationService struct {
	pipeline Pipeline
	jobs     JobRunner
	catalog  CatalogReloader
	validate *validator.Validate
	logger   *slog.Logger
}

// NewOperationService wires the service. jobs and catalog may be nil.
func NewOperationService(pipeline Pipeline, jobs JobRunner, catalog CatalogReloader, logger *slog.Logger) *OperationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationService{
		pipeline: pipeline,
		jobs:     jobs,
		catalog:  catalog,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "operation_service")),
	}
}

// Run executes the request and waits for it. The response is returned even
// when the run fails so callers can report per-step outcomes.
func (s *OperationService) Run(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	resp, err := s.pipeline.Execute(ctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "pipeline_run_failed",
			slog.String("step", req.Step),
			slog.String("error", err.Error()))
		return resp, err
	}

	s.RefreshCatalog(ctx, req)
	return resp, nil
}

// Submit queues the request and returns the pending job
func (s *OperationService) Submit(ctx context.Context, req operations.OperationRequest) (*operations.Job, error) {
	if s.jobs == nil {
		return nil, ErrPipelineDisabled
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	return s.jobs.Submit(ctx, req)
}

// Steps lists the registered steps in dependency order
func (s *OperationService) Steps(ctx context.Context) ([]operations.StepDescriptor, error) {
	return s.pipeline.Steps()
}

// GetJob returns a queued or finished job
func (s *OperationService) GetJob(ctx context.Context, id string) (*operations.Job, error) {
	if s.jobs == nil {
		return nil, ErrPipelineDisabled
	}
	return s.jobs.GetJob(id)
}

// ListJobs returns jobs newest first
func (s *OperationService) ListJobs(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	if s.jobs == nil {
		return nil, ErrPipelineDisabled
	}
	return s.jobs.ListJobs(filter)
}

// CancelJob cancels a pending job or stops a running one between steps
func (s *OperationService) CancelJob(ctx context.Context, id string) error {
	if s.jobs == nil {
		return ErrPipelineDisabled
	}
	if err := s.jobs.CancelJob(id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "job_cancel_requested", slog.String("job_id", id))
	return nil
}

// OnJobComplete is installed as the job queue's completion hook
func (s *OperationService) OnJobComplete(ctx context.Context, job *operations.Job) {
	req := operations.OperationRequest{ID: job.OperationID}
	if job.Step != operations.StepIDFullPipeline {
		req.Step = job.Step
	}
	s.RefreshCatalog(ctx, req)
}

// RefreshCatalog reloads the catalog when req rebuilt the master table
func (s *OperationService) RefreshCatalog(ctx context.Context, req operations.OperationRequest) {
	if s.catalog == nil {
		return
	}
	if !req.RunsFullPipeline() && req.Step != operations.StepIDMaster {
		return
	}
	if err := s.catalog.Reload(ctx); err != nil {
		s.logger.WarnContext(ctx, "catalog_reload_failed", slog.String("error", err.Error()))
	}
}

func (s *OperationService) validateRequest(req operations.OperationRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidStep, req.Step)
	}
	return err
}
