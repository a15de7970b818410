package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sachi-35/crop-yield-prediction/internal/dataprocessing"
)

// supportedExtensions lists the tabular formats the parser reads
var supportedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xlsm": true,
}

// FileValidator checks pipeline inputs and outputs before a step touches them
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// RequireFiles checks that every path is a readable regular file. All
// failures are reported together, each as a missing-source data error.
func (v *FileValidator) RequireFiles(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := v.ValidateFile(p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		v.logger.Warn("input_files_missing",
			slog.Int("missing", len(errs)),
			slog.Int("checked", len(paths)))
	}
	return errors.Join(errs...)
}

// ValidateFile checks that path exists, is not a directory and can be opened
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		v.logger.Debug("file_stat_failed",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return dataprocessing.NewMissingSourceFileError(path, err)
	}
	if info.IsDir() {
		return dataprocessing.NewMissingSourceFileError(path, fmt.Errorf("%s is a directory, not a file", path))
	}

	file, err := os.Open(path)
	if err != nil {
		return dataprocessing.NewMissingSourceFileError(path, fmt.Errorf("file is not readable: %w", err))
	}
	file.Close()

	v.logger.Debug("file_validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateSourceFile is ValidateFile plus a check that the parser can read
// the format. Spreadsheet lock files are rejected.
func (v *FileValidator) ValidateSourceFile(path string) error {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return dataprocessing.NewSchemaViolationError(path, "", "temporary spreadsheet lock file")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return dataprocessing.NewSchemaViolationError(path, "", fmt.Sprintf("unsupported file extension %q", ext))
	}
	return v.ValidateFile(path)
}

// ValidateInputDirectory checks that dir exists and is a directory
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("input_directory_missing", slog.String("directory", dir))
		return dataprocessing.NewMissingSourceFileError(dir, err)
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// ValidateOutputDirectory creates dir if needed and checks it is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.logger.Error("output_directory_create_failed",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("output_directory_not_writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := tmp.Name()
	tmp.Close()
	os.Remove(name)
	return nil
}
