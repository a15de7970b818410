package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved directories of the pipeline.
// This is the single source of truth for file locations.
type Paths struct {
	BaseDir      string
	DataDir      string
	RawDir       string
	ProcessedDir string
	CleanedDir   string
	FinalDir     string
	LogsDir      string
}

// NewPaths resolves a PathsConfig into absolute directories. An empty
// BaseDir means the current working directory.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	dataDir := resolve(base, cfg.DataDir)
	return &Paths{
		BaseDir:      base,
		DataDir:      dataDir,
		RawDir:       resolve(dataDir, cfg.RawDir),
		ProcessedDir: resolve(dataDir, cfg.ProcessedDir),
		CleanedDir:   resolve(dataDir, cfg.CleanedDir),
		FinalDir:     resolve(dataDir, cfg.FinalDir),
		LogsDir:      resolve(base, cfg.LogsDir),
	}, nil
}

func resolve(parent, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(parent, dir)
}

// EnsureDirectories creates the output directories if they don't exist.
// The raw directory is input only and is never created.
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.ProcessedDir,
		p.CleanedDir,
		p.FinalDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}
	return nil
}

// RawFile returns the path of a raw source file
func (p *Paths) RawFile(name string) string {
	return resolve(p.RawDir, name)
}

// ProcessedFile returns the path of a standardized or scaled file
func (p *Paths) ProcessedFile(name string) string {
	return resolve(p.ProcessedDir, name)
}

// CleanedFile returns the path of an imputed file
func (p *Paths) CleanedFile(name string) string {
	return resolve(p.CleanedDir, name)
}

// FinalFile returns the path of a final output file
func (p *Paths) FinalFile(name string) string {
	return resolve(p.FinalDir, name)
}

// LogFile returns the path of a log file
func (p *Paths) LogFile(name string) string {
	return resolve(p.LogsDir, name)
}

// MergedDatasetPath returns the merged dataset location
func (p *Paths) MergedDatasetPath() string {
	return p.FinalFile(MergedDatasetFile)
}

// MasterTablePath returns the master table location
func (p *Paths) MasterTablePath() string {
	return p.FinalFile(MasterTableFile)
}

// LogPathResolution logs every resolved directory at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("paths_resolved",
		slog.String("base_dir", p.BaseDir),
		slog.String("raw_dir", p.RawDir),
		slog.String("processed_dir", p.ProcessedDir),
		slog.String("cleaned_dir", p.CleanedDir),
		slog.String("final_dir", p.FinalDir),
		slog.String("logs_dir", p.LogsDir))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
