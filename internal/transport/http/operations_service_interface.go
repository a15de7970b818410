package http

import (
	"context"

	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
)

// OperationServiceInterface defines the interface for the pipeline service
type OperationServiceInterface interface {
	Run(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error)
	Submit(ctx context.Context, req operations.OperationRequest) (*operations.Job, error)
	Steps(ctx context.Context) ([]operations.StepDescriptor, error)
	GetJob(ctx context.Context, id string) (*operations.Job, error)
	ListJobs(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error)
	CancelJob(ctx context.Context, id string) error
}
