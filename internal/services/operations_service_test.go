package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
	"github.com/Sachi-35/crop-yield-prediction/internal/shared/testutil"
)

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*operations.OperationResponse)
	return resp, args.Error(1)
}

func (m *mockPipeline) Steps() ([]operations.StepDescriptor, error) {
	args := m.Called()
	steps, _ := args.Get(0).([]operations.StepDescriptor)
	return steps, args.Error(1)
}

type mockJobRunner struct {
	mock.Mock
}

func (m *mockJobRunner) Submit(ctx context.Context, req operations.OperationRequest) (*operations.Job, error) {
	args := m.Called(ctx, req)
	job, _ := args.Get(0).(*operations.Job)
	return job, args.Error(1)
}

func (m *mockJobRunner) GetJob(id string) (*operations.Job, error) {
	args := m.Called(id)
	job, _ := args.Get(0).(*operations.Job)
	return job, args.Error(1)
}

func (m *mockJobRunner) ListJobs(filter operations.JobFilter) ([]*operations.Job, error) {
	args := m.Called(filter)
	jobs, _ := args.Get(0).([]*operations.Job)
	return jobs, args.Error(1)
}

func (m *mockJobRunner) CancelJob(id string) error {
	return m.Called(id).Error(0)
}

type mockReloader struct {
	mock.Mock
}

func (m *mockReloader) Reload(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestOperationService_Run(t *testing.T) {
	tests := []struct {
		name       string
		step       string
		wantReload bool
	}{
		{name: "full pipeline reloads catalog", step: "", wantReload: true},
		{name: "explicit full pipeline reloads catalog", step: operations.StepIDFullPipeline, wantReload: true},
		{name: "master step reloads catalog", step: operations.StepIDMaster, wantReload: true},
		{name: "merge step leaves catalog", step: operations.StepIDMerge, wantReload: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &mockPipeline{}
			reloader := &mockReloader{}
			req := operations.OperationRequest{Step: tt.step}
			resp := &operations.OperationResponse{ID: "op-1", Status: operations.OperationStatusCompleted}

			pipeline.On("Execute", mock.Anything, req).Return(resp, nil)
			if tt.wantReload {
				reloader.On("Reload", mock.Anything).Return(nil)
			}

			svc := NewOperationService(pipeline, nil, reloader, nil)
			got, err := svc.Run(context.Background(), req)

			require.NoError(t, err)
			assert.Same(t, resp, got)
			pipeline.AssertExpectations(t)
			reloader.AssertExpectations(t)
			if !tt.wantReload {
				reloader.AssertNotCalled(t, "Reload", mock.Anything)
			}
		})
	}
}

func TestOperationService_RunRejectsUnknownStep(t *testing.T) {
	pipeline := &mockPipeline{}
	svc := NewOperationService(pipeline, nil, nil, nil)

	_, err := svc.Run(context.Background(), operations.OperationRequest{Step: "forecast"})

	assert.ErrorIs(t, err, ErrInvalidStep)
	assert.Contains(t, err.Error(), "forecast")
	pipeline.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestOperationService_RunFailure(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	pipeline := &mockPipeline{}
	reloader := &mockReloader{}
	runErr := operations.WrapError(errors.New("boom"), operations.StepIDMerge, "failed")
	resp := &operations.OperationResponse{ID: "op-1", Status: operations.OperationStatusFailed}

	pipeline.On("Execute", mock.Anything, mock.Anything).Return(resp, runErr)

	svc := NewOperationService(pipeline, nil, reloader, logger)
	got, err := svc.Run(context.Background(), operations.OperationRequest{})

	assert.ErrorIs(t, err, runErr)
	assert.Same(t, resp, got)
	reloader.AssertNotCalled(t, "Reload", mock.Anything)
	assert.True(t, handler.ContainsMessage("pipeline_run_failed"))
}

func TestOperationService_ReloadFailureIsLogged(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	pipeline := &mockPipeline{}
	reloader := &mockReloader{}
	pipeline.On("Execute", mock.Anything, mock.Anything).Return(&operations.OperationResponse{}, nil)
	reloader.On("Reload", mock.Anything).Return(errors.New("unreadable"))

	svc := NewOperationService(pipeline, nil, reloader, logger)
	_, err := svc.Run(context.Background(), operations.OperationRequest{})

	require.NoError(t, err)
	assert.True(t, handler.ContainsMessage("catalog_reload_failed"))
}

func TestOperationService_Jobs(t *testing.T) {
	ctx := context.Background()
	jobs := &mockJobRunner{}
	svc := NewOperationService(&mockPipeline{}, jobs, nil, nil)

	job := &operations.Job{ID: "job-1", Step: operations.StepIDClean, Status: operations.JobStatusPending}
	req := operations.OperationRequest{Step: operations.StepIDClean}
	jobs.On("Submit", mock.Anything, req).Return(job, nil)
	jobs.On("GetJob", "job-1").Return(job, nil)
	jobs.On("ListJobs", operations.JobFilter{Limit: 5}).Return([]*operations.Job{job}, nil)
	jobs.On("CancelJob", "job-1").Return(nil)

	got, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)

	got, err = svc.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, operations.JobStatusPending, got.Status)

	list, err := svc.ListJobs(ctx, operations.JobFilter{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.CancelJob(ctx, "job-1"))
	jobs.AssertExpectations(t)

	_, err = svc.Submit(ctx, operations.OperationRequest{Step: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestOperationService_JobsDisabled(t *testing.T) {
	ctx := context.Background()
	svc := NewOperationService(&mockPipeline{}, nil, nil, nil)

	_, err := svc.Submit(ctx, operations.OperationRequest{})
	assert.ErrorIs(t, err, ErrPipelineDisabled)
	_, err = svc.GetJob(ctx, "x")
	assert.ErrorIs(t, err, ErrPipelineDisabled)
	_, err = svc.ListJobs(ctx, operations.JobFilter{})
	assert.ErrorIs(t, err, ErrPipelineDisabled)
	assert.ErrorIs(t, svc.CancelJob(ctx, "x"), ErrPipelineDisabled)
}

func TestOperationService_OnJobComplete(t *testing.T) {
	reloader := &mockReloader{}
	reloader.On("Reload", mock.Anything).Return(nil).Once()
	svc := NewOperationService(&mockPipeline{}, nil, reloader, nil)

	svc.OnJobComplete(context.Background(), &operations.Job{Step: operations.StepIDFullPipeline})
	svc.OnJobComplete(context.Background(), &operations.Job{Step: operations.StepIDScale})

	reloader.AssertNumberOfCalls(t, "Reload", 1)
}

func TestOperationService_Steps(t *testing.T) {
	pipeline := &mockPipeline{}
	steps := []operations.StepDescriptor{{ID: operations.StepIDStandardize}, {ID: operations.StepIDClean}}
	pipeline.On("Steps").Return(steps, nil)

	got, err := NewOperationService(pipeline, nil, nil, nil).Steps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, steps, got)
}

func TestOperationService_AgainstRealManager(t *testing.T) {
	registry := operations.NewRegistry()
	stage := &stubStep{id: operations.StepIDMaster}
	require.NoError(t, registry.Register(stage))
	manager := operations.NewManager(registry, operations.NewConfigBuilder().Build(), nil, nil)

	reloader := &mockReloader{}
	reloader.On("Reload", mock.Anything).Return(nil)

	resp, err := NewOperationService(manager, nil, reloader, nil).Run(context.Background(), operations.OperationRequest{Step: operations.StepIDMaster})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	assert.True(t, stage.ran)
	reloader.AssertExpectations(t)
}

type stubStep struct {
	id  string
	ran bool
}

func (s *stubStep) ID() string { return s.id }
func (s *stubStep) Name() string { return s.id }
func (s *stubStep) GetDependencies() []string { return nil }
func (s *stubStep) ProducedOutputs() []operations.DataOutput { return nil }
func (s *stubStep) Validate(*operations.OperationState) error { return nil }
func (s *stubStep) Execute(ctx context.Context, state *operations.OperationState) error {
	s.ran = true
	return nil
}
