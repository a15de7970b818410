package app

import (
	"fmt"
	"log/slog"

	"github.com/Sachi-35/crop-yield-prediction/internal/config"
	"github.com/Sachi-35/crop-yield-prediction/internal/dataprocessing"
	"github.com/Sachi-35/crop-yield-prediction/internal/exporter"
	"github.com/Sachi-35/crop-yield-prediction/internal/geography"
	"github.com/Sachi-35/crop-yield-prediction/internal/infrastructure"
	"github.com/Sachi-35/crop-yield-prediction/internal/operations"
	"github.com/Sachi-35/crop-yield-prediction/internal/validation"
)

// PipelineOptions overrides configuration for a single process
type PipelineOptions struct {
	// SourcesFile replaces cfg.Pipeline.SourcesFile when set.
	SourcesFile string
}

// NewPipeline builds the step registry and manager shared by the CLI and
// the web server. The run manifest is written next to the master table.
func NewPipeline(cfg *config.Config, paths *config.Paths, providers *infrastructure.OTelProviders, metrics *infrastructure.PipelineMetrics, logger *slog.Logger, opts PipelineOptions) (*operations.Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sourcesFile := cfg.Pipeline.SourcesFile
	if opts.SourcesFile != "" {
		sourcesFile = opts.SourcesFile
	}
	sources, err := dataprocessing.LoadSourceSpecs(sourcesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load source specs: %w", err)
	}

	env := &operations.StepEnv{
		Paths:      paths,
		Sources:    sources,
		Normalizer: dataprocessing.NewNormalizer(geography.NewResolver(), logger),
		Writer:     exporter.NewCSVWriter(logger),
		Master: dataprocessing.MasterOptions{
			DropColumns:    cfg.Pipeline.MasterDropColumns,
			FragileColumns: cfg.Pipeline.FragileColumns,
			Threshold:      cfg.Pipeline.ScientificThreshold,
		},
		EnableScaling: cfg.Pipeline.EnableScaling,
		MaxParallel:   cfg.Pipeline.MaxParallel,
		Metrics:       metrics,
		Logger:        logger,
	}

	registry := operations.NewRegistry()
	if err := operations.RegisterPipelineSteps(registry, env); err != nil {
		return nil, err
	}

	opCfg := operations.NewConfigBuilder().
		WithManifestDir(paths.FinalDir).
		Build()

	logger.Info("pipeline_configured",
		slog.Int("sources", len(sources)),
		slog.String("sources_file", sourcesFile),
		slog.Bool("scaling_enabled", env.EnableScaling),
		slog.Int("max_parallel", env.MaxParallel))

	return operations.NewManager(registry, opCfg, operations.NewOperationTracer(providers, metrics), logger), nil
}

// Bootstrap holds what every entry point builds before doing its work
type Bootstrap struct {
	Config    *config.Config
	Paths     *config.Paths
	Logger    *slog.Logger
	Providers *infrastructure.OTelProviders
	Metrics   *infrastructure.PipelineMetrics

	closers []func() error
}

// NewBootstrap resolves directories, opens the logger and initializes
// OpenTelemetry
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logCfg := cfg.Logging
	if logCfg.FilePath != "" {
		logCfg.FilePath = paths.LogFile(logCfg.FilePath)
	}
	logger, logCloser, err := infrastructure.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	paths.LogPathResolution(logger)

	if err := validation.NewFileValidator(logger).ValidateOutputDirectory(paths.FinalDir); err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	return &Bootstrap{
		Config:    cfg,
		Paths:     paths,
		Logger:    logger,
		Providers: providers,
		Metrics:   metrics,
		closers:   []func() error{logCloser.Close},
	}, nil
}

// NewPipeline builds the manager from the bootstrapped dependencies
func (b *Bootstrap) NewPipeline(opts PipelineOptions) (*operations.Manager, error) {
	return NewPipeline(b.Config, b.Paths, b.Providers, b.Metrics, b.Logger, opts)
}

// Close releases the log file
func (b *Bootstrap) Close() error {
	var firstErr error
	for _, c := range b.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
