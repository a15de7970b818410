package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "github.com/Sachi-35/crop-yield-prediction/internal/errors"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
	"github.com/Sachi-35/crop-yield-prediction/internal/services"
	"github.com/Sachi-35/crop-yield-prediction/internal/shared/testutil"
)

// MockOperationService is a mock implementation of OperationServiceInterface
type MockOperationService struct {
	mock.Mock
}

func (m *MockOperationService) Run(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*operations.OperationResponse)
	return resp, args.Error(1)
}

func (m *MockOperationService) Submit(ctx context.Context, req operations.OperationRequest) (*operations.Job, error) {
	args := m.Called(req)
	job, _ := args.Get(0).(*operations.Job)
	return job, args.Error(1)
}

func (m *MockOperationService) Steps(ctx context.Context) ([]operations.StepDescriptor, error) {
	args := m.Called()
	steps, _ := args.Get(0).([]operations.StepDescriptor)
	return steps, args.Error(1)
}

func (m *MockOperationService) GetJob(ctx context.Context, id string) (*operations.Job, error) {
	args := m.Called(id)
	job, _ := args.Get(0).(*operations.Job)
	return job, args.Error(1)
}

func (m *MockOperationService) ListJobs(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	args := m.Called(filter)
	jobs, _ := args.Get(0).([]*operations.Job)
	return jobs, args.Error(1)
}

func (m *MockOperationService) CancelJob(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func newOperationsHandler(t *testing.T, svc OperationServiceInterface) http.Handler {
	logger, _ := testutil.NewTestLogger(t)
	return NewOperationsHandler(svc, logger, apierrors.NewErrorHandler(logger, false)).Routes()
}

func stepIs(step string) any {
	return mock.MatchedBy(func(req operations.OperationRequest) bool { return req.Step == step })
}

func TestOperationsHandler_Run(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantStep string
	}{
		{name: "empty body runs everything", body: "", wantStep: ""},
		{name: "single step", body: `{"step":"merge"}`, wantStep: operations.StepIDMerge},
		{name: "explicit full pipeline", body: `{"step":"full_pipeline"}`, wantStep: operations.StepIDFullPipeline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockOperationService{}
			resp := &operations.OperationResponse{ID: "op-1", Status: operations.OperationStatusCompleted}
			svc.On("Run", stepIs(tt.wantStep)).Return(resp, nil)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(tt.body))
			newOperationsHandler(t, svc).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "op-1", body["id"])
			assert.Equal(t, string(operations.OperationStatusCompleted), body["status"])
			svc.AssertExpectations(t)
		})
	}
}

func TestOperationsHandler_RunValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown step", body: `{"step":"forecast"}`},
		{name: "malformed json", body: `{"step":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockOperationService{}

			rec := httptest.NewRecorder()
			newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apierrors.TypeValidation, decodeBody(t, rec)["type"])
			svc.AssertNotCalled(t, "Run", mock.Anything)
		})
	}
}

func TestOperationsHandler_RunFailureIncludesOperation(t *testing.T) {
	svc := &MockOperationService{}
	resp := &operations.OperationResponse{
		ID:     "op-2",
		Status: operations.OperationStatusFailed,
		Error:  "merge failed",
	}
	runErr := operations.WrapError(errors.New("write failed"), operations.StepIDMerge, "merge failed")
	svc.On("Run", stepIs(operations.StepIDMerge)).Return(resp, runErr)

	rec := httptest.NewRecorder()
	newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"step":"merge"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, apierrors.TypeOperationFailed, body["type"])
	assert.Equal(t, "merge", body["step"])

	op, ok := body["operation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "op-2", op["id"])
	assert.Equal(t, string(operations.OperationStatusFailed), op["status"])
}

func TestOperationsHandler_RunServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "invalid step", err: fmt.Errorf("%w: %q", services.ErrInvalidStep, "x"), wantStatus: http.StatusBadRequest},
		{name: "cancelled", err: operations.NewCancellationError(operations.StepIDClean, context.Canceled), wantStatus: http.StatusConflict},
		{name: "step not found", err: operations.NewNotFoundError("scale"), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockOperationService{}
			svc.On("Run", mock.Anything).Return(nil, tt.err)

			rec := httptest.NewRecorder()
			newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotContains(t, decodeBody(t, rec), "operation")
		})
	}
}

func TestOperationsHandler_RunAsync(t *testing.T) {
	svc := &MockOperationService{}
	job := &operations.Job{ID: "job-1", OperationID: "op-1", Step: operations.StepIDClean, Status: operations.JobStatusPending}
	svc.On("Submit", stepIs(operations.StepIDClean)).Return(job, nil)

	rec := httptest.NewRecorder()
	newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run?async=true", strings.NewReader(`{"step":"clean"}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/pipeline/jobs/job-1", rec.Header().Get("Location"))
	assert.Equal(t, "job-1", decodeBody(t, rec)["id"])
	svc.AssertNotCalled(t, "Run", mock.Anything)
}

func TestOperationsHandler_GetSteps(t *testing.T) {
	svc := &MockOperationService{}
	svc.On("Steps").Return([]operations.StepDescriptor{
		{ID: operations.StepIDStandardize, Name: "Standardize Sources"},
		{ID: operations.StepIDClean, Name: "Clean Sources", Dependencies: []string{operations.StepIDStandardize}},
	}, nil)

	rec := httptest.NewRecorder()
	newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/steps", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	steps, ok := decodeBody(t, rec)["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 2)
	assert.Equal(t, operations.StepIDStandardize, steps[0].(map[string]any)["id"])
	assert.Equal(t, []any{operations.StepIDStandardize}, steps[1].(map[string]any)["dependencies"])
}

func TestOperationsHandler_Jobs(t *testing.T) {
	job := &operations.Job{ID: "job-1", Step: operations.StepIDMaster, Status: operations.JobStatusRunning}

	t.Run("submit", func(t *testing.T) {
		svc := &MockOperationService{}
		svc.On("Submit", stepIs("")).Return(job, nil)

		rec := httptest.NewRecorder()
		newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("queue full", func(t *testing.T) {
		svc := &MockOperationService{}
		svc.On("Submit", mock.Anything).Return(nil, operations.ErrQueueFull)

		rec := httptest.NewRecorder()
		newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("jobs disabled", func(t *testing.T) {
		svc := &MockOperationService{}
		svc.On("Submit", mock.Anything).Return(nil, services.ErrPipelineDisabled)

		rec := httptest.NewRecorder()
		newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, apierrors.TypeServiceDown, decodeBody(t, rec)["type"])
	})

	t.Run("list with filter", func(t *testing.T) {
		svc := &MockOperationService{}
		svc.On("ListJobs", operations.JobFilter{Status: operations.JobStatusRunning, Step: "master", Limit: 5}).
			Return([]*operations.Job{job}, nil)

		rec := httptest.NewRecorder()
		newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=running&step=master&limit=5", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decodeBody(t, rec)["count"])
		svc.AssertExpectations(t)
	})

	t.Run("list defaults", func(t *testing.T) {
		svc := &MockOperationService{}
		svc.On("ListJobs", operations.JobFilter{Limit: defaultJobLimit}).Return(nil, nil)

		rec := httptest.NewRecorder()
		newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{}, decodeBody(t, rec)["jobs"])
	})

	t.Run("list rejects bad params", func(t *testing.T) {
		svc := &MockOperationService{}
		for _, q := range []string{"?limit=0", "?limit=abc", "?status=lost"} {
			rec := httptest.NewRecorder()
			newOperationsHandler(t, svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
		svc.AssertNotCalled(t, "ListJobs", mock.Anything)
	})

	t.Run("get", func(t *testing.T) {
		svc := &MockOperationService{}
		svc.On("GetJob", "job-1").Return(job, nil)
		svc.On("GetJob", "nope").Return(nil, operations.NewNotFoundError("job nope"))

		h := newOperationsHandler(t, svc)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, string(operations.JobStatusRunning), decodeBody(t, rec)["status"])

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cancel", func(t *testing.T) {
		svc := &MockOperationService{}
		svc.On("CancelJob", "job-1").Return(nil)
		svc.On("CancelJob", "job-2").Return(fmt.Errorf("%w: job job-2 is completed", operations.ErrJobNotCancellable))

		h := newOperationsHandler(t, svc)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/job-1", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/job-2", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apierrors.TypeConflict, decodeBody(t, rec)["type"])
	})
}

func TestOperationsHandler_AgainstRealService(t *testing.T) {
	registry := operations.NewRegistry()
	require.NoError(t, registry.Register(&noopStep{id: operations.StepIDStandardize}))
	manager := operations.NewManager(registry, operations.NewConfigBuilder().Build(), nil, nil)
	svc := services.NewOperationService(manager, nil, nil, nil)

	h := newOperationsHandler(t, svc)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"step":"standardize"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(operations.OperationStatusCompleted), decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type noopStep struct {
	id string
}

func (s *noopStep) ID() string { return s.id }
func (s *noopStep) Name() string { return s.id }
func (s *noopStep) GetDependencies() []string { return nil }
func (s *noopStep) ProducedOutputs() []operations.DataOutput { return nil }
func (s *noopStep) Validate(*operations.OperationState) error { return nil }
func (s *noopStep) Execute(context.Context, *operations.OperationState) error { return nil }
