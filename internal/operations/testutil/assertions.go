package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
)

// AssertStepStatus checks the status of a step in an operation
func AssertStepStatus(t *testing.T, state *operations.OperationState, stepID string, expected operations.StepStatus) {
	t.Helper()
	step := state.GetStage(stepID)
	require.NotNil(t, step, "step %s not found", stepID)
	assert.Equal(t, expected, step.GetStatus(), "step %s", stepID)
}

// AssertResponseStepStatus checks the status of a step in a response
func AssertResponseStepStatus(t *testing.T, resp *operations.OperationResponse, stepID string, expected operations.StepStatus) {
	t.Helper()
	require.NotNil(t, resp)
	step, ok := resp.Steps[stepID]
	require.True(t, ok, "step %s not in response", stepID)
	assert.Equal(t, expected, step.Status, "step %s", stepID)
}

// AssertErrorType checks that err is an OperationError of the given type
func AssertErrorType(t *testing.T, err error, expected operations.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, expected, operations.GetErrorType(err), "error: %v", err)
}

// AssertExecutedBefore checks that stage a finished executing before b
func AssertExecutedBefore(t *testing.T, a, b *MockStage) {
	t.Helper()
	a.mu.Lock()
	at := a.LastExecuted
	a.mu.Unlock()
	b.mu.Lock()
	bt := b.LastExecuted
	b.mu.Unlock()

	require.False(t, at.IsZero(), "%s was not executed", a.IDValue)
	require.False(t, bt.IsZero(), "%s was not executed", b.IDValue)
	assert.False(t, bt.Before(at), "%s ran before %s", b.IDValue, a.IDValue)
}
