package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sachi-35/crop-yield-prediction/internal/dataprocessing"
	"github.com/Sachi-35/crop-yield-prediction/internal/shared/testutil"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("State,Year\nPunjab,2000\n"), 0o644))
	return path
}

func TestFileValidator_RequireFiles(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewFileValidator(logger)
	dir := t.TempDir()
	present := writeFile(t, dir, "crop_yield.csv")

	t.Run("all present", func(t *testing.T) {
		assert.NoError(t, v.RequireFiles(present))
	})

	t.Run("reports every missing file", func(t *testing.T) {
		missingA := filepath.Join(dir, "rainfall.csv")
		missingB := filepath.Join(dir, "fertilizer.csv")

		err := v.RequireFiles(present, missingA, missingB)
		require.Error(t, err)
		assert.True(t, dataprocessing.IsKind(err, dataprocessing.ErrorKindMissingSourceFile))
		assert.Contains(t, err.Error(), "rainfall.csv")
		assert.Contains(t, err.Error(), "fertilizer.csv")
	})

	t.Run("directory is not a file", func(t *testing.T) {
		err := v.RequireFiles(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "directory")
	})
}

func TestFileValidator_ValidateSourceFile(t *testing.T) {
	v := NewFileValidator(nil)
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		create   bool
		wantKind dataprocessing.ErrorKind
	}{
		{name: "csv", file: "crop_yield.csv", create: true},
		{name: "workbook", file: "district.xlsx", create: true},
		{name: "upper case extension", file: "PESTICIDE.CSV", create: true},
		{name: "missing", file: "rainfall.csv", wantKind: dataprocessing.ErrorKindMissingSourceFile},
		{name: "unsupported extension", file: "notes.txt", create: true, wantKind: dataprocessing.ErrorKindSchemaViolation},
		{name: "lock file", file: "~$district.xlsx", create: true, wantKind: dataprocessing.ErrorKindSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if tt.create {
				writeFile(t, dir, tt.file)
			}

			err := v.ValidateSourceFile(path)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dataprocessing.IsKind(err, tt.wantKind), "got %v", err)
		})
	}
}

func TestFileValidator_Directories(t *testing.T) {
	v := NewFileValidator(nil)
	base := t.TempDir()

	assert.NoError(t, v.ValidateInputDirectory(base))

	err := v.ValidateInputDirectory(filepath.Join(base, "raw"))
	assert.True(t, dataprocessing.IsKind(err, dataprocessing.ErrorKindMissingSourceFile))

	file := writeFile(t, base, "raw.csv")
	assert.Error(t, v.ValidateInputDirectory(file))

	out := filepath.Join(base, "data", "final")
	require.NoError(t, v.ValidateOutputDirectory(out))
	assert.DirExists(t, out)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file must be removed")
}
