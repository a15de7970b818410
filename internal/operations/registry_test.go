package operations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations/testutil"
)

func stepIDs(steps []operations.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	return ids
}

func TestRegistryRegister(t *testing.T) {
	tests := []struct {
		name    string
		step    operations.Step
		wantErr string
	}{
		{name: "valid step", step: testutil.CreateSuccessfulStage("a", "A")},
		{name: "nil step", step: nil, wantErr: "nil step"},
		{name: "empty id", step: testutil.CreateSuccessfulStage("", "Empty"), wantErr: "cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := operations.NewRegistry()
			err := r.Register(tt.step)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, r.Has(tt.step.ID()))
			assert.Equal(t, 1, r.Count())
		})
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := operations.NewRegistry()
	require.NoError(t, r.Register(testutil.CreateSuccessfulStage("a", "A")))
	err := r.Register(testutil.CreateSuccessfulStage("a", "A again"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryGet(t *testing.T) {
	r := operations.NewRegistry()
	require.NoError(t, r.Register(testutil.CreateSuccessfulStage("a", "A")))

	step, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "A", step.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestRegistryDependencyOrder(t *testing.T) {
	// registered out of order on purpose
	stages := testutil.CreatePipelineStages()
	r, err := testutil.CreateTestRegistry(stages[4], stages[3], stages[2], stages[1], stages[0])
	require.NoError(t, err)

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)
	ids := stepIDs(ordered)
	require.Len(t, ids, 5)

	pos := make(map[string]int)
	for i, id := range ids {
		pos[id] = i
	}
	assert.Less(t, pos[operations.StepIDStandardize], pos[operations.StepIDClean])
	assert.Less(t, pos[operations.StepIDClean], pos[operations.StepIDScale])
	assert.Less(t, pos[operations.StepIDClean], pos[operations.StepIDMerge])
	assert.Less(t, pos[operations.StepIDMerge], pos[operations.StepIDMaster])
}

func TestRegistryDependencyOrderIsStable(t *testing.T) {
	r, err := testutil.CreateTestRegistry(testutil.CreatePipelineStages()...)
	require.NoError(t, err)

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{
		operations.StepIDStandardize,
		operations.StepIDClean,
		operations.StepIDScale,
		operations.StepIDMerge,
		operations.StepIDMaster,
	}, stepIDs(ordered))
}

func TestRegistryMissingDependency(t *testing.T) {
	r, err := testutil.CreateTestRegistry(testutil.CreateSuccessfulStage("b", "B", "a"))
	require.NoError(t, err)

	err = r.ValidateDependencies()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent step a")
}

func TestRegistryCycle(t *testing.T) {
	r, err := testutil.CreateTestRegistry(
		testutil.CreateSuccessfulStage("a", "A", "c"),
		testutil.CreateSuccessfulStage("b", "B", "a"),
		testutil.CreateSuccessfulStage("c", "C", "b"),
	)
	require.NoError(t, err)

	_, err = r.GetDependencyOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRegistryGetDependents(t *testing.T) {
	r, err := testutil.CreateTestRegistry(testutil.CreatePipelineStages()...)
	require.NoError(t, err)

	assert.Equal(t, []string{operations.StepIDScale, operations.StepIDMerge}, r.GetDependents(operations.StepIDClean))
	assert.Empty(t, r.GetDependents(operations.StepIDMaster))
	assert.Equal(t, []string{
		operations.StepIDStandardize,
		operations.StepIDClean,
		operations.StepIDScale,
		operations.StepIDMerge,
		operations.StepIDMaster,
	}, r.ListIDs())
}
