package operations

import (
	"time"
)

// Pipeline step identifiers
const (
	StepIDStandardize = "standardize"
	StepIDClean       = "clean"
	StepIDScale       = "scale"
	StepIDMerge       = "merge"
	StepIDMaster      = "master"

	// StepIDFullPipeline selects every registered step
	StepIDFullPipeline = "full_pipeline"
)

// Pipeline step names
const (
	StepNameStandardize = "Source Standardization"
	StepNameClean       = "Missing Value Imputation"
	StepNameScale       = "Min-Max Scaling"
	StepNameMerge       = "Cross-source Merge"
	StepNameMaster      = "Master Table Build"
)

// Metadata keys recorded on step states
const (
	MetadataKeyRowsWritten = "rows_written"
	MetadataKeyFiles       = "files"
	MetadataKeyDropped     = "rows_dropped"
	MetadataKeyUnmapped    = "unmapped_subdivisions"
)

// OperationTypePipeline labels pipeline runs in metrics and traces
const OperationTypePipeline = "pipeline"

// OperationRequest asks the manager to run the pipeline or one of its steps
type OperationRequest struct {
	ID string `json:"id,omitempty"`
	// Step selects a single step. Empty or full_pipeline runs every step.
	Step       string         `json:"step,omitempty" validate:"omitempty,oneof=full_pipeline standardize clean scale merge master"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RunsFullPipeline reports whether the request covers every step
func (r OperationRequest) RunsFullPipeline() bool {
	return r.Step == "" || r.Step == StepIDFullPipeline
}

// OperationResponse represents the response from an operation execution
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`
}

// StepDescriptor describes a registered step for API listings
type StepDescriptor struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Dependencies []string     `json:"dependencies"`
	Outputs      []DataOutput `json:"outputs,omitempty"`
}

// Describe builds the descriptor of a step
func Describe(step Step) StepDescriptor {
	return StepDescriptor{
		ID:           step.ID(),
		Name:         step.Name(),
		Dependencies: step.GetDependencies(),
		Outputs:      step.ProducedOutputs(),
	}
}
