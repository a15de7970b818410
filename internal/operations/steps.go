package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Sachi-35/crop-yield-prediction/internal/config"
	"github.com/Sachi-35/crop-yield-prediction/internal/dataprocessing"
	"github.com/Sachi-35/crop-yield-prediction/internal/exporter"
	"github.com/Sachi-35/crop-yield-prediction/internal/infrastructure"
	"github.com/Sachi-35/crop-yield-prediction/internal/validation"
	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// Output data types recorded in the manifest
const (
	DataTypeStandardized = "standardized"
	DataTypeCleaned      = "cleaned"
	DataTypeScaled       = "scaled"
	DataTypeMerged       = "merged"
	DataTypeMaster       = "master"
)

// StepEnv carries what every pipeline step needs
type StepEnv struct {
	Paths         *config.Paths
	Sources       []dataprocessing.SourceSpec
	Normalizer    *dataprocessing.Normalizer
	Writer        *exporter.CSVWriter
	Master        dataprocessing.MasterOptions
	EnableScaling bool
	MaxParallel   int
	Metrics       *infrastructure.PipelineMetrics
	Logger        *slog.Logger
}

func (e *StepEnv) logger(step string) *slog.Logger {
	l := e.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("step", step))
}

func (e *StepEnv) limit() int {
	if e.MaxParallel < 1 {
		return 1
	}
	return e.MaxParallel
}

// requireFiles fails with a missing-source error for every absent file
func (e *StepEnv) requireFiles(paths ...string) error {
	return validation.NewFileValidator(e.Logger).RequireFiles(paths...)
}

// forEachSource runs fn for every source with bounded parallelism. The first
// error cancels the remaining work.
func (e *StepEnv) forEachSource(ctx context.Context, fn func(ctx context.Context, spec dataprocessing.SourceSpec) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit())
	for _, spec := range e.Sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, spec)
		})
	}
	return g.Wait()
}

// writeOutputs writes frames atomically as one batch and records them
func (e *StepEnv) writeOutputs(ctx context.Context, state *OperationState, stepID, dataType string, frames map[string]*dataprocessing.Frame) error {
	if err := e.Writer.WriteFrames(frames); err != nil {
		return err
	}

	total := 0
	files := make([]string, 0, len(frames))
	for path, f := range frames {
		state.Manifest.AddArtifact(stepID, dataType, path, f.Len())
		infrastructure.RecordRowsWritten(ctx, e.Metrics, stepID, path, f.Len())
		total += f.Len()
		files = append(files, path)
	}
	if s := state.GetStage(stepID); s != nil {
		s.SetMetadata(MetadataKeyRowsWritten, total)
		s.SetMetadata(MetadataKeyFiles, files)
	}
	return nil
}

// readSourceFrames loads one persisted frame per source
func (e *StepEnv) readSourceFrames(ctx context.Context, path func(dataprocessing.SourceSpec) string) (map[domain.SourceKind]*dataprocessing.Frame, error) {
	var mu sync.Mutex
	frames := make(map[domain.SourceKind]*dataprocessing.Frame, len(e.Sources))
	err := e.forEachSource(ctx, func(_ context.Context, spec dataprocessing.SourceSpec) error {
		f, err := dataprocessing.ReadFrame(path(spec))
		if err != nil {
			return err
		}
		mu.Lock()
		frames[spec.Kind] = f
		mu.Unlock()
		return nil
	})
	return frames, err
}

func (e *StepEnv) sourcePaths(path func(dataprocessing.SourceSpec) string) []string {
	out := make([]string, len(e.Sources))
	for i, spec := range e.Sources {
		out[i] = path(spec)
	}
	return out
}

func (e *StepEnv) rawPath(spec dataprocessing.SourceSpec) string {
	return e.Paths.RawFile(spec.File)
}

func (e *StepEnv) standardizedPath(spec dataprocessing.SourceSpec) string {
	return e.Paths.ProcessedFile(spec.Output)
}

func (e *StepEnv) cleanedPath(spec dataprocessing.SourceSpec) string {
	return e.Paths.CleanedFile(spec.CleanOutput)
}

func (e *StepEnv) scaledPath(spec dataprocessing.SourceSpec) string {
	return e.Paths.ProcessedFile(spec.ScaledOutput)
}

// StandardizeStep maps every raw source onto its canonical schema and
// reconciles rainfall subdivisions
type StandardizeStep struct {
	BaseStage
	env *StepEnv
}

// NewStandardizeStep creates the standardize step
func NewStandardizeStep(env *StepEnv) *StandardizeStep {
	return &StandardizeStep{
		BaseStage: NewBaseStage(StepIDStandardize, StepNameStandardize, nil),
		env:       env,
	}
}

// Validate checks that every raw source file exists in a readable format
func (s *StandardizeStep) Validate(state *OperationState) error {
	v := validation.NewFileValidator(s.env.Logger)
	if err := v.ValidateInputDirectory(s.env.Paths.RawDir); err != nil {
		return err
	}
	var errs []error
	for _, p := range s.env.sourcePaths(s.env.rawPath) {
		errs = append(errs, v.ValidateSourceFile(p))
	}
	return errors.Join(errs...)
}

// ProducedOutputs lists the standardized files
func (s *StandardizeStep) ProducedOutputs() []DataOutput {
	return s.env.outputs(DataTypeStandardized, s.env.Paths.ProcessedDir, func(spec dataprocessing.SourceSpec) string { return spec.Output })
}

// Execute standardizes all sources, then writes them as one batch
func (s *StandardizeStep) Execute(ctx context.Context, state *OperationState) error {
	logger := s.env.logger(s.ID())
	progress := NewProgressTracker(state.GetStage(s.ID()), len(s.env.Sources))

	var mu sync.Mutex
	frames := make(map[string]*dataprocessing.Frame, len(s.env.Sources))
	dropped := 0
	var unmapped []string

	err := s.env.forEachSource(ctx, func(ctx context.Context, spec dataprocessing.SourceSpec) error {
		raw, err := dataprocessing.ReadRawTable(s.env.rawPath(spec), spec.Sheet)
		if err != nil {
			return err
		}
		res, err := s.env.Normalizer.Normalize(spec, raw)
		if err != nil {
			return err
		}

		infrastructure.RecordRowsDropped(ctx, s.env.Metrics, string(spec.Kind), res.DroppedRows)
		for _, issue := range res.Issues {
			if issue.Fatal() {
				return issue
			}
			infrastructure.RecordDataQualityEvent(ctx, s.env.Metrics, string(issue.Kind), string(spec.Kind))
		}

		mu.Lock()
		frames[s.env.standardizedPath(spec)] = res.Frame
		dropped += res.DroppedRows
		unmapped = append(unmapped, res.Unmapped...)
		mu.Unlock()

		progress.Increment(string(spec.Kind))
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.env.writeOutputs(ctx, state, s.ID(), DataTypeStandardized, frames); err != nil {
		return err
	}

	stepState := state.GetStage(s.ID())
	if stepState != nil {
		stepState.SetMetadata(MetadataKeyDropped, dropped)
		stepState.SetMetadata(MetadataKeyUnmapped, unmapped)
	}
	logger.InfoContext(ctx, "sources_standardized",
		slog.Int("sources", len(frames)),
		slog.Int("rows_dropped", dropped),
		slog.Int("unmapped_subdivisions", len(unmapped)))
	return nil
}

// CleanStep imputes missing values in every standardized source
type CleanStep struct {
	BaseStage
	env *StepEnv
}

// NewCleanStep creates the clean step
func NewCleanStep(env *StepEnv) *CleanStep {
	return &CleanStep{
		BaseStage: NewBaseStage(StepIDClean, StepNameClean, []string{StepIDStandardize}),
		env:       env,
	}
}

// Validate checks that the standardized files exist
func (s *CleanStep) Validate(state *OperationState) error {
	return s.env.requireFiles(s.env.sourcePaths(s.env.standardizedPath)...)
}

// ProducedOutputs lists the cleaned files
func (s *CleanStep) ProducedOutputs() []DataOutput {
	return s.env.outputs(DataTypeCleaned, s.env.Paths.CleanedDir, func(spec dataprocessing.SourceSpec) string { return spec.CleanOutput })
}

// Execute imputes each source independently
func (s *CleanStep) Execute(ctx context.Context, state *OperationState) error {
	logger := s.env.logger(s.ID())
	progress := NewProgressTracker(state.GetStage(s.ID()), len(s.env.Sources))

	var mu sync.Mutex
	frames := make(map[string]*dataprocessing.Frame, len(s.env.Sources))
	err := s.env.forEachSource(ctx, func(ctx context.Context, spec dataprocessing.SourceSpec) error {
		f, err := dataprocessing.ReadFrame(s.env.standardizedPath(spec))
		if err != nil {
			return err
		}
		if f.Len() == 0 {
			return dataprocessing.NewEmptyDatasetError(s.env.standardizedPath(spec), "standardized table has no rows")
		}
		cleaned, err := dataprocessing.Impute(f, nil)
		if err != nil {
			return err
		}

		mu.Lock()
		frames[s.env.cleanedPath(spec)] = cleaned
		mu.Unlock()

		logger.DebugContext(ctx, "source_imputed",
			slog.String("source", string(spec.Kind)),
			slog.Int("rows", cleaned.Len()))
		progress.Increment(string(spec.Kind))
		return nil
	})
	if err != nil {
		return err
	}
	return s.env.writeOutputs(ctx, state, s.ID(), DataTypeCleaned, frames)
}

// ScaleStep min-max scales every cleaned source
type ScaleStep struct {
	BaseStage
	env *StepEnv
}

// NewScaleStep creates the scale step
func NewScaleStep(env *StepEnv) *ScaleStep {
	return &ScaleStep{
		BaseStage: NewBaseStage(StepIDScale, StepNameScale, []string{StepIDClean}),
		env:       env,
	}
}

// Validate checks that the cleaned files exist
func (s *ScaleStep) Validate(state *OperationState) error {
	if !s.env.EnableScaling {
		return nil
	}
	return s.env.requireFiles(s.env.sourcePaths(s.env.cleanedPath)...)
}

// ProducedOutputs lists the scaled files
func (s *ScaleStep) ProducedOutputs() []DataOutput {
	return s.env.outputs(DataTypeScaled, s.env.Paths.ProcessedDir, func(spec dataprocessing.SourceSpec) string { return spec.ScaledOutput })
}

// Execute scales each source, keeping identifiers and configured columns
// such as the yield target untouched. It does nothing when scaling is off.
func (s *ScaleStep) Execute(ctx context.Context, state *OperationState) error {
	logger := s.env.logger(s.ID())
	if !s.env.EnableScaling {
		logger.InfoContext(ctx, "scaling_disabled")
		if st := state.GetStage(s.ID()); st != nil {
			st.UpdateProgress(100, "scaling disabled")
		}
		return nil
	}

	cleaned, err := s.env.readSourceFrames(ctx, s.env.cleanedPath)
	if err != nil {
		return err
	}

	frames := make(map[string]*dataprocessing.Frame, len(cleaned))
	for _, spec := range s.env.Sources {
		frames[s.env.scaledPath(spec)] = dataprocessing.MinMaxScale(cleaned[spec.Kind], spec.Unscaled)
	}
	return s.env.writeOutputs(ctx, state, s.ID(), DataTypeScaled, frames)
}

// MergeStep joins the cleaned sources into the merged dataset
type MergeStep struct {
	BaseStage
	env *StepEnv
}

// NewMergeStep creates the merge step
func NewMergeStep(env *StepEnv) *MergeStep {
	return &MergeStep{
		BaseStage: NewBaseStage(StepIDMerge, StepNameMerge, []string{StepIDClean}),
		env:       env,
	}
}

// Validate checks that the cleaned files exist
func (s *MergeStep) Validate(state *OperationState) error {
	return s.env.requireFiles(s.env.sourcePaths(s.env.cleanedPath)...)
}

// ProducedOutputs lists the merged dataset
func (s *MergeStep) ProducedOutputs() []DataOutput {
	return []DataOutput{{Type: DataTypeMerged, Location: s.env.Paths.FinalDir, File: config.MergedDatasetFile}}
}

// Execute merges the sources
func (s *MergeStep) Execute(ctx context.Context, state *OperationState) error {
	cleaned, err := s.env.readSourceFrames(ctx, s.env.cleanedPath)
	if err != nil {
		return err
	}

	merged, err := dataprocessing.Merge(dataprocessing.MergeInputs{
		CropYield:    cleaned[domain.SourceCropYield],
		DistrictCrop: cleaned[domain.SourceDistrictCrop],
		Fertilizer:   cleaned[domain.SourceFertilizer],
		Pesticides:   cleaned[domain.SourcePesticide],
		Rainfall:     cleaned[domain.SourceRainfall],
	})
	if err != nil {
		return err
	}

	s.env.logger(s.ID()).InfoContext(ctx, "sources_merged",
		slog.Int("rows", merged.Len()),
		slog.Int("columns", len(merged.Columns)))
	return s.env.writeOutputs(ctx, state, s.ID(), DataTypeMerged,
		map[string]*dataprocessing.Frame{s.env.Paths.MergedDatasetPath(): merged})
}

// MasterStep builds the deduplicated master table
type MasterStep struct {
	BaseStage
	env *StepEnv
}

// NewMasterStep creates the master step
func NewMasterStep(env *StepEnv) *MasterStep {
	return &MasterStep{
		BaseStage: NewBaseStage(StepIDMaster, StepNameMaster, []string{StepIDMerge}),
		env:       env,
	}
}

// Validate checks that the merged dataset exists
func (s *MasterStep) Validate(state *OperationState) error {
	return s.env.requireFiles(s.env.Paths.MergedDatasetPath())
}

// ProducedOutputs lists the master table
func (s *MasterStep) ProducedOutputs() []DataOutput {
	return []DataOutput{{Type: DataTypeMaster, Location: s.env.Paths.FinalDir, File: config.MasterTableFile}}
}

// Execute aggregates the merged dataset into the master table
func (s *MasterStep) Execute(ctx context.Context, state *OperationState) error {
	merged, err := dataprocessing.ReadFrame(s.env.Paths.MergedDatasetPath())
	if err != nil {
		return err
	}
	master, err := dataprocessing.BuildMaster(merged, s.env.Master)
	if err != nil {
		return err
	}

	s.env.logger(s.ID()).InfoContext(ctx, "master_table_built",
		slog.Int("merged_rows", merged.Len()),
		slog.Int("rows", master.Len()))
	return s.env.writeOutputs(ctx, state, s.ID(), DataTypeMaster,
		map[string]*dataprocessing.Frame{s.env.Paths.MasterTablePath(): master})
}

func (e *StepEnv) outputs(dataType, dir string, file func(dataprocessing.SourceSpec) string) []DataOutput {
	out := make([]DataOutput, len(e.Sources))
	for i, spec := range e.Sources {
		out[i] = DataOutput{Type: dataType, Location: dir, File: file(spec)}
	}
	return out
}

// RegisterPipelineSteps registers the five pipeline steps on a registry
func RegisterPipelineSteps(registry *Registry, env *StepEnv) error {
	steps := []Step{
		NewStandardizeStep(env),
		NewCleanStep(env),
		NewScaleStep(env),
		NewMergeStep(env),
		NewMasterStep(env),
	}
	for _, step := range steps {
		if err := registry.Register(step); err != nil {
			return fmt.Errorf("register step %s: %w", step.ID(), err)
		}
	}
	return registry.ValidateDependencies()
}
