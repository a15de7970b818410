package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ManifestFile is the file name of the persisted run manifest
const ManifestFile = "pipeline_manifest.json"

// PipelineManifest records what a pipeline run executed and which files it
// produced. It is written next to the final outputs after every run.
type PipelineManifest struct {
	mu sync.RWMutex

	OperationID string    `json:"operation_id"`
	StartTime   time.Time `json:"start_time"`

	// Artifacts maps a file path to what produced it
	Artifacts map[string]*ArtifactInfo `json:"artifacts"`

	Steps []StepExecution `json:"steps"`

	Status      string    `json:"status"` // "running", "completed", "failed", "cancelled"
	LastUpdated time.Time `json:"last_updated"`
	Error       string    `json:"error,omitempty"`
}

// ArtifactInfo describes one output file
type ArtifactInfo struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Rows      int       `json:"rows"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// StepExecution tracks the execution of a single step
type StepExecution struct {
	StepID    string         `json:"step_id"`
	StepName  string         `json:"step_name"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time,omitempty"`
	Duration  string         `json:"duration,omitempty"`
	Status    string         `json:"status"` // "running", "completed", "failed", "skipped"
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewPipelineManifest creates a new pipeline manifest
func NewPipelineManifest(operationID string) *PipelineManifest {
	now := time.Now()
	return &PipelineManifest{
		OperationID: operationID,
		StartTime:   now,
		Artifacts:   make(map[string]*ArtifactInfo),
		Status:      "running",
		LastUpdated: now,
	}
}

// AddArtifact records a file written by a step. The size is read from disk
// when the file exists.
func (m *PipelineManifest) AddArtifact(stepID, dataType, path string, rows int) {
	info := &ArtifactInfo{
		Type:      dataType,
		Path:      path,
		Rows:      rows,
		CreatedAt: time.Now(),
		CreatedBy: stepID,
	}
	if st, err := os.Stat(path); err == nil {
		info.SizeBytes = st.Size()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Artifacts[path] = info
	m.LastUpdated = time.Now()
}

// GetArtifact returns the record of a produced file
func (m *PipelineManifest) GetArtifact(path string) (*ArtifactInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.Artifacts[path]
	return info, ok
}

// RecordStepStart records the start of a step execution
func (m *PipelineManifest) RecordStepStart(stepID, stepName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Steps = append(m.Steps, StepExecution{
		StepID:    stepID,
		StepName:  stepName,
		StartTime: time.Now(),
		Status:    "running",
	})
	m.LastUpdated = time.Now()
}

// RecordStepCompletion records the completion of a step
func (m *PipelineManifest) RecordStepCompletion(stepID string, metadata map[string]any) {
	m.finishStep(stepID, "completed", "", metadata)
}

// RecordStepFailure records a step failure
func (m *PipelineManifest) RecordStepFailure(stepID string, err error) {
	m.finishStep(stepID, "failed", err.Error(), nil)
}

// RecordStepSkipped records a step that did not run
func (m *PipelineManifest) RecordStepSkipped(stepID, stepName, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.Steps = append(m.Steps, StepExecution{
		StepID:    stepID,
		StepName:  stepName,
		StartTime: now,
		EndTime:   now,
		Status:    "skipped",
		Error:     reason,
	})
	m.LastUpdated = now
}

func (m *PipelineManifest) finishStep(stepID, status, errMsg string, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.Steps) - 1; i >= 0; i-- {
		if m.Steps[i].StepID != stepID {
			continue
		}
		now := time.Now()
		m.Steps[i].EndTime = now
		m.Steps[i].Duration = now.Sub(m.Steps[i].StartTime).String()
		m.Steps[i].Status = status
		m.Steps[i].Error = errMsg
		m.Steps[i].Metadata = metadata
		break
	}
	m.LastUpdated = time.Now()
}

// Finish sets the final run status
func (m *PipelineManifest) Finish(status OperationStatusValue, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Status = string(status)
	if err != nil {
		m.Error = err.Error()
	}
	m.LastUpdated = time.Now()
}

// IsStepCompleted checks if a step has been completed
func (m *PipelineManifest) IsStepCompleted(stepID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, step := range m.Steps {
		if step.StepID == stepID && step.Status == "completed" {
			return true
		}
	}
	return false
}

// SaveToFile saves the manifest to a JSON file
func (m *PipelineManifest) SaveToFile(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	return nil
}

// LoadManifestFromFile loads a manifest from a JSON file
func LoadManifestFromFile(path string) (*PipelineManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest PipelineManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	if manifest.Artifacts == nil {
		manifest.Artifacts = make(map[string]*ArtifactInfo)
	}
	return &manifest, nil
}
