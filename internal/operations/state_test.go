package operations_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/dataprocessing"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
)

func TestStepStateLifecycle(t *testing.T) {
	s := operations.NewStepState("clean", "Clean")
	assert.Equal(t, operations.StepStatusPending, s.GetStatus())
	assert.Zero(t, s.Duration())

	s.Start()
	assert.Equal(t, operations.StepStatusActive, s.GetStatus())

	s.UpdateProgress(50, "half")
	s.SetMetadata(operations.MetadataKeyRowsWritten, 10)
	s.Complete()

	assert.Equal(t, operations.StepStatusCompleted, s.GetStatus())
	assert.Equal(t, float64(100), s.Progress)
	assert.Equal(t, 10, s.Metadata[operations.MetadataKeyRowsWritten])
}

func TestStepStateFailAndSkip(t *testing.T) {
	failed := operations.NewStepState("a", "A")
	failed.Start()
	failed.Fail(errors.New("bad input"))
	assert.Equal(t, operations.StepStatusFailed, failed.GetStatus())
	assert.Equal(t, "bad input", failed.Error)

	skipped := operations.NewStepState("b", "B")
	skipped.Skip("dependency a did not complete")
	assert.Equal(t, operations.StepStatusSkipped, skipped.GetStatus())
	assert.Equal(t, "dependency a did not complete", skipped.Message)
}

func TestOperationStateQueries(t *testing.T) {
	state := operations.NewOperationState("op-1")
	require.NotNil(t, state.Manifest)
	assert.Equal(t, operations.OperationStatusPending, state.GetStatus())

	for _, id := range []string{"c", "a", "b"} {
		state.SetStage(id, operations.NewStepState(id, id))
	}
	state.GetStage("a").Fail(errors.New("x"))
	state.GetStage("c").Fail(errors.New("y"))

	assert.True(t, state.HasFailures())
	assert.Equal(t, []string{"a", "c"}, state.StepsWithStatus(operations.StepStatusFailed))

	state.SetParameter("source", "rainfall")
	v, ok := state.GetParameter("source")
	assert.True(t, ok)
	assert.Equal(t, "rainfall", v)

	state.Start()
	state.Fail(errors.New("run failed"))
	assert.Equal(t, operations.OperationStatusFailed, state.GetStatus())

	clone := state.Clone()
	clone.GetStage("b").Complete()
	assert.Equal(t, operations.StepStatusPending, state.GetStage("b").GetStatus())
}

func TestProgressTracker(t *testing.T) {
	step := operations.NewStepState("standardize", "Standardize")
	p := operations.NewProgressTracker(step, 4)

	p.Increment("crop_yield")
	p.Increment("rainfall")
	current, total, pct := p.GetProgress()
	assert.Equal(t, 2, current)
	assert.Equal(t, 4, total)
	assert.Equal(t, float64(50), pct)
	assert.Equal(t, float64(50), step.Progress)
	assert.Contains(t, step.Message, "rainfall done (2/4)")
	assert.False(t, p.IsComplete())

	p.Increment("fertilizer")
	p.Increment("pesticide")
	assert.True(t, p.IsComplete())

	empty := operations.NewProgressTracker(nil, 0)
	empty.Increment("x")
	_, _, pct = empty.GetProgress()
	assert.Zero(t, pct)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := operations.NewPipelineManifest("op-7")
	m.RecordStepStart(operations.StepIDStandardize, operations.StepNameStandardize)
	m.AddArtifact(operations.StepIDStandardize, operations.DataTypeStandardized, filepath.Join(dir, "std_rainfall.csv"), 12)
	m.RecordStepCompletion(operations.StepIDStandardize, map[string]any{"rows": 12})
	m.RecordStepStart(operations.StepIDClean, operations.StepNameClean)
	m.RecordStepFailure(operations.StepIDClean, errors.New("empty"))
	m.RecordStepSkipped(operations.StepIDMerge, operations.StepNameMerge, "dependency clean did not complete")
	m.Finish(operations.OperationStatusFailed, errors.New("empty"))

	path := filepath.Join(dir, "nested", operations.ManifestFile)
	require.NoError(t, m.SaveToFile(path))

	loaded, err := operations.LoadManifestFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "op-7", loaded.OperationID)
	assert.Equal(t, "failed", loaded.Status)
	assert.Equal(t, "empty", loaded.Error)
	require.Len(t, loaded.Steps, 3)
	assert.True(t, loaded.IsStepCompleted(operations.StepIDStandardize))
	assert.False(t, loaded.IsStepCompleted(operations.StepIDClean))

	art, ok := loaded.GetArtifact(filepath.Join(dir, "std_rainfall.csv"))
	require.True(t, ok)
	assert.Equal(t, 12, art.Rows)
	assert.Equal(t, operations.StepIDStandardize, art.CreatedBy)
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := operations.LoadManifestFromFile(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType operations.ErrorType
	}{
		{name: "plain error", err: errors.New("io"), wantType: operations.ErrorTypeExecution},
		{name: "data error", err: dataprocessing.NewEmptyDatasetError("x.csv", "no rows"), wantType: operations.ErrorTypeData},
		{name: "wrapped data error", err: fmt.Errorf("read: %w", dataprocessing.NewSchemaViolationError("x.csv", "Year", "missing")), wantType: operations.ErrorTypeData},
		{name: "operation error", err: operations.NewValidationError("", "bad"), wantType: operations.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := operations.WrapError(tt.err, "clean", "step execution failed")
			require.NotNil(t, wrapped)
			assert.Equal(t, tt.wantType, wrapped.Type)
			assert.Equal(t, "clean", wrapped.Step)
		})
	}

	assert.Nil(t, operations.WrapError(nil, "clean", "x"))
}

func TestOperationErrorMessage(t *testing.T) {
	err := operations.NewCancellationError("merge", errors.New("user"))
	assert.Equal(t, "[cancellation] merge: operation was cancelled: user", err.Error())

	fatal := operations.NewFatalError("no order", nil)
	assert.Equal(t, "[fatal] no order", fatal.Error())

	assert.Equal(t, operations.ErrorType(""), operations.GetErrorType(nil))
	assert.Equal(t, operations.ErrorTypeExecution, operations.GetErrorType(errors.New("x")))
	assert.Equal(t, operations.ErrorTypeNotFound, operations.GetErrorType(operations.NewNotFoundError("forecast")))
}
