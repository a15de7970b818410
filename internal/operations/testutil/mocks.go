package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
)

// MockStage is a configurable mock implementation of the step interface
type MockStage struct {
	IDValue           string
	NameValue         string
	DependenciesValue []string
	OutputsValue      []operations.DataOutput

	// Configurable functions
	ExecuteFunc  func(ctx context.Context, state *operations.OperationState) error
	ValidateFunc func(state *operations.OperationState) error

	// Call tracking
	mu            sync.Mutex
	ExecuteCalls  int
	ValidateCalls int
	LastExecuted  time.Time
}

// ID returns the step ID
func (m *MockStage) ID() string {
	return m.IDValue
}

// Name returns the step name
func (m *MockStage) Name() string {
	return m.NameValue
}

// GetDependencies returns the step dependencies
func (m *MockStage) GetDependencies() []string {
	if m.DependenciesValue == nil {
		return []string{}
	}
	return m.DependenciesValue
}

// ProducedOutputs returns the configured outputs
func (m *MockStage) ProducedOutputs() []operations.DataOutput {
	return m.OutputsValue
}

// Execute runs the mock execute function
func (m *MockStage) Execute(ctx context.Context, state *operations.OperationState) error {
	m.mu.Lock()
	m.ExecuteCalls++
	m.LastExecuted = time.Now()
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return nil
}

// Validate runs the mock validate function
func (m *MockStage) Validate(state *operations.OperationState) error {
	m.mu.Lock()
	m.ValidateCalls++
	m.mu.Unlock()

	if m.ValidateFunc != nil {
		return m.ValidateFunc(state)
	}
	return nil
}

// GetExecuteCalls returns the number of Execute calls
func (m *MockStage) GetExecuteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// GetValidateCalls returns the number of Validate calls
func (m *MockStage) GetValidateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ValidateCalls
}

// MockExecutor records requests and answers them with ExecuteFunc
type MockExecutor struct {
	mu        sync.Mutex
	Requests  []operations.OperationRequest
	Cancelled []string

	ExecuteFunc func(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error)
	CancelFunc  func(id string) error
}

// Execute records the request and delegates to ExecuteFunc
func (m *MockExecutor) Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, req)
	}
	return &operations.OperationResponse{ID: req.ID, Status: operations.OperationStatusCompleted}, nil
}

// CancelOperation records the id and delegates to CancelFunc
func (m *MockExecutor) CancelOperation(id string) error {
	m.mu.Lock()
	m.Cancelled = append(m.Cancelled, id)
	m.mu.Unlock()

	if m.CancelFunc != nil {
		return m.CancelFunc(id)
	}
	return nil
}

// GetRequests returns a copy of the recorded requests
func (m *MockExecutor) GetRequests() []operations.OperationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]operations.OperationRequest, len(m.Requests))
	copy(out, m.Requests)
	return out
}
