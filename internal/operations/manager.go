package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sachi-35/crop-yield-prediction/internal/infrastructure"
)

// runningOperation pairs a live state with the function that cancels it
type runningOperation struct {
	state  *OperationState
	cancel context.CancelCauseFunc
}

// Manager orchestrates pipeline execution
type Manager struct {
	registry *Registry
	config   *Config
	tracer   *OperationTracer
	logger   *slog.Logger

	// runs write the same output files, so only one executes at a time
	runMu sync.Mutex

	mu         sync.RWMutex
	operations map[string]*runningOperation
}

// NewManager creates a new pipeline manager
func NewManager(registry *Registry, config *Config, tracer *OperationTracer, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if tracer == nil {
		tracer = NewNoopOperationTracer()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		registry:   registry,
		config:     config,
		tracer:     tracer,
		logger:     logger.With(slog.String("component", "operations")),
		operations: make(map[string]*runningOperation),
	}
}

// RegisterStep registers a step with the pipeline
func (m *Manager) RegisterStep(step Step) error {
	return m.registry.Register(step)
}

// GetRegistry returns the registry for accessing registered steps
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Steps describes the registered steps in execution order
func (m *Manager) Steps() ([]StepDescriptor, error) {
	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		return nil, err
	}
	out := make([]StepDescriptor, len(steps))
	for i, s := range steps {
		out[i] = Describe(s)
	}
	return out, nil
}

// Execute runs the pipeline, or a single step of it, and blocks until done.
// A single step reads its inputs from the files earlier steps persisted.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	ctx = infrastructure.EnsureTraceID(ctx)

	state := NewOperationState(req.ID)
	for k, v := range req.Parameters {
		state.SetParameter(k, v)
	}

	steps, err := m.selectSteps(req)
	if err != nil {
		m.logger.ErrorContext(ctx, "operation_error",
			slog.String("operation_id", req.ID),
			slog.String("error", err.Error()))
		state.Fail(err)
		return m.createResponse(state), err
	}
	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	m.storeOperation(state, cancel)
	defer m.removeOperation(req.ID)

	m.runMu.Lock()
	defer m.runMu.Unlock()

	runCtx, span := m.tracer.TraceOperationExecution(runCtx, req.ID, req)
	defer span.End()

	m.logger.InfoContext(runCtx, "operation_start",
		slog.String("operation_id", req.ID),
		slog.String("step", req.Step),
		slog.Int("step_count", len(steps)))

	state.Start()
	err = m.executeSequential(runCtx, state, steps)

	var opErr *OperationError
	switch {
	case err == nil:
		state.Complete()
	case errors.As(err, &opErr) && opErr.Type == ErrorTypeCancellation:
		state.Cancel(err)
		m.tracer.RecordCancellation(runCtx, req.ID, context.Cause(runCtx))
	default:
		state.Fail(err)
	}
	m.tracer.RecordOperationCompletion(runCtx, span, req.ID, state.Duration(), err)
	m.finishManifest(runCtx, state, err)

	m.logger.InfoContext(runCtx, "operation_complete",
		slog.String("operation_id", req.ID),
		slog.String("status", string(state.GetStatus())),
		slog.Duration("duration", state.Duration()))

	return m.createResponse(state), err
}

// selectSteps resolves the request into the steps to run
func (m *Manager) selectSteps(req OperationRequest) ([]Step, error) {
	if !req.RunsFullPipeline() {
		step, err := m.registry.Get(req.Step)
		if err != nil {
			return nil, NewNotFoundError(req.Step)
		}
		return []Step{step}, nil
	}

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		return nil, NewFatalError("failed to get dependency order", err)
	}
	return steps, nil
}

// executeSequential executes steps one by one. The context is checked
// between steps. Dependents of a failed step are skipped.
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	blocked := make(map[string]string)
	var firstErr error

	for i, step := range steps {
		stepState := state.GetStage(step.ID())

		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			m.skipRemaining(state, steps[i:], "operation cancelled")
			return NewCancellationError(step.ID(), context.Cause(ctx))
		}

		if reason, ok := m.blockedBy(step, blocked); ok {
			m.logger.InfoContext(ctx, "step_skipped",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("reason", reason))
			stepState.Skip(reason)
			state.Manifest.RecordStepSkipped(step.ID(), step.Name(), reason)
			blocked[step.ID()] = reason
			continue
		}

		m.logger.InfoContext(ctx, "executing_step",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		err := m.executeStep(ctx, state, step)
		if err == nil {
			continue
		}

		blocked[step.ID()] = fmt.Sprintf("dependency %s failed", step.ID())
		if firstErr == nil {
			firstErr = err
		}
		if !m.config.ContinueOnError {
			m.skipRemaining(state, steps[i+1:], fmt.Sprintf("pipeline stopped after %s failed", step.ID()))
			return err
		}
		m.logger.WarnContext(ctx, "step_failed_continuing",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.String("error", err.Error()))
	}
	return firstErr
}

// blockedBy reports whether a dependency of step failed or was skipped in
// this run. Dependencies outside the run are satisfied by persisted files.
func (m *Manager) blockedBy(step Step, blocked map[string]string) (string, bool) {
	for _, dep := range step.GetDependencies() {
		if _, ok := blocked[dep]; ok {
			return fmt.Sprintf("dependency %s did not complete", dep), true
		}
	}
	return "", false
}

func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		if s := state.GetStage(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
			state.Manifest.RecordStepSkipped(step.ID(), step.Name(), reason)
		}
	}
}

// executeStep validates and runs one step. Steps are not retried.
func (m *Manager) executeStep(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError(fmt.Sprintf("state for step %s not found", step.ID()), nil)
	}

	ctx, span := m.tracer.TraceStepExecution(ctx, state.ID, step.ID())
	defer span.End()

	state.Manifest.RecordStepStart(step.ID(), step.Name())
	stepState.Start()
	start := time.Now()

	var err error
	if verr := step.Validate(state); verr != nil {
		err = &OperationError{Type: ErrorTypeValidation, Step: step.ID(), Message: "step inputs are not ready", Cause: verr}
	} else if xerr := step.Execute(ctx, state); xerr != nil {
		err = WrapError(xerr, step.ID(), "step execution failed")
	}
	duration := time.Since(start)
	m.tracer.RecordStepCompletion(ctx, span, state.ID, step.ID(), duration, err)

	if err != nil {
		m.logger.ErrorContext(ctx, "step_failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		stepState.Fail(err)
		state.Manifest.RecordStepFailure(step.ID(), err)
		return err
	}

	stepState.Complete()
	state.Manifest.RecordStepCompletion(step.ID(), stepState.snapshot().Metadata)
	m.logger.InfoContext(ctx, "step_completed",
		slog.String("operation_id", state.ID),
		slog.String("step", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

// finishManifest stamps the run result and persists the manifest
func (m *Manager) finishManifest(ctx context.Context, state *OperationState, runErr error) {
	state.Manifest.Finish(state.GetStatus(), runErr)
	if m.config.ManifestDir == "" {
		return
	}
	path := filepath.Join(m.config.ManifestDir, ManifestFile)
	if err := state.Manifest.SaveToFile(path); err != nil {
		m.logger.WarnContext(ctx, "manifest_write_failed",
			slog.String("operation_id", state.ID),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// createResponse creates an operation response from a snapshot of state
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	snap := state.Clone()
	resp := &OperationResponse{
		ID:       snap.ID,
		Status:   snap.Status,
		Duration: snap.Duration(),
		Steps:    snap.Steps,
	}
	if snap.Error != nil {
		resp.Error = snap.Error.Error()
	}
	return resp
}

// GetOperation retrieves a snapshot of a running operation
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, exists := m.operations[id]
	if !exists {
		return nil, &OperationError{Type: ErrorTypeNotFound, Message: fmt.Sprintf("operation %s not found", id)}
	}
	return op.state.Clone(), nil
}

// ListOperations returns snapshots of all running operations
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*OperationState, 0, len(m.operations))
	for _, op := range m.operations {
		out = append(out, op.state.Clone())
	}
	return out
}

// CancelOperation stops a running operation before its next step
func (m *Manager) CancelOperation(id string) error {
	m.mu.RLock()
	op, exists := m.operations[id]
	m.mu.RUnlock()
	if !exists {
		return &OperationError{Type: ErrorTypeNotFound, Message: fmt.Sprintf("operation %s not found", id)}
	}

	op.cancel(errors.New("operation cancelled by user"))
	return nil
}

func (m *Manager) storeOperation(state *OperationState, cancel context.CancelCauseFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = &runningOperation{state: state, cancel: cancel}
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}
