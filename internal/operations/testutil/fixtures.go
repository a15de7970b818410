package testutil

import (
	"context"
	"time"

	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
)

// CreateSuccessfulStage creates a step that always succeeds
func CreateSuccessfulStage(id, name string, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			if s := state.GetStage(id); s != nil {
				s.UpdateProgress(100, "done")
			}
			return nil
		},
	}
}

// CreateFailingStage creates a step whose Execute returns err
func CreateFailingStage(id, name string, err error, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			return err
		},
	}
}

// CreateSlowStage creates a step that sleeps unless its context ends first
func CreateSlowStage(id, name string, duration time.Duration, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			select {
			case <-time.After(duration):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// CreateBlockingStage creates a step that signals started and then waits
// for release
func CreateBlockingStage(id, name string, started chan<- struct{}, release <-chan struct{}, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			close(started)
			<-release
			return nil
		},
	}
}

// CreateValidationFailingStage creates a step whose Validate fails
func CreateValidationFailingStage(id, name string, validationErr error, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ValidateFunc: func(state *operations.OperationState) error {
			return validationErr
		},
	}
}

// CreatePipelineStages mirrors the shape of the real pipeline:
// standardize -> clean -> {scale, merge}, merge -> master
func CreatePipelineStages() []*MockStage {
	return []*MockStage{
		CreateSuccessfulStage(operations.StepIDStandardize, operations.StepNameStandardize),
		CreateSuccessfulStage(operations.StepIDClean, operations.StepNameClean, operations.StepIDStandardize),
		CreateSuccessfulStage(operations.StepIDScale, operations.StepNameScale, operations.StepIDClean),
		CreateSuccessfulStage(operations.StepIDMerge, operations.StepNameMerge, operations.StepIDClean),
		CreateSuccessfulStage(operations.StepIDMaster, operations.StepNameMaster, operations.StepIDMerge),
	}
}

// CreateTestRegistry registers the given stages in order
func CreateTestRegistry(stages ...*MockStage) (*operations.Registry, error) {
	registry := operations.NewRegistry()
	for _, s := range stages {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// StageBuilder builds mock stages fluently
type StageBuilder struct {
	stage *MockStage
}

// NewStageBuilder creates a new stage builder
func NewStageBuilder(id, name string) *StageBuilder {
	return &StageBuilder{stage: &MockStage{IDValue: id, NameValue: name}}
}

// WithDependencies sets the stage dependencies
func (b *StageBuilder) WithDependencies(deps ...string) *StageBuilder {
	b.stage.DependenciesValue = deps
	return b
}

// WithExecute sets the execute function
func (b *StageBuilder) WithExecute(fn func(context.Context, *operations.OperationState) error) *StageBuilder {
	b.stage.ExecuteFunc = fn
	return b
}

// WithValidate sets the validate function
func (b *StageBuilder) WithValidate(fn func(*operations.OperationState) error) *StageBuilder {
	b.stage.ValidateFunc = fn
	return b
}

// Build returns the built stage
func (b *StageBuilder) Build() *MockStage {
	return b.stage
}
