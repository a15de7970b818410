package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/Sachi-35/crop-yield-prediction/internal/dataprocessing"
)

// CSVWriter provides atomic CSV export of frames
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers []string
	Records [][]string
}

// WriteCSV writes headers and records to filePath. The file is written to a
// temporary sibling first and renamed into place, so readers never observe
// a partial file.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	tmp, err := w.writeTemp(filePath, options)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", filePath, err)
	}

	w.logger.Info("csv_written",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))
	return nil
}

// WriteFrame writes a frame in its canonical on-disk layout
func (w *CSVWriter) WriteFrame(filePath string, frame *dataprocessing.Frame) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers: frame.Header(),
		Records: frame.Records(),
	})
}

// WriteFrames writes several frames as one unit: either every target is
// replaced or none is. Keys are destination paths.
func (w *CSVWriter) WriteFrames(frames map[string]*dataprocessing.Frame) error {
	paths := make([]string, 0, len(frames))
	for p := range frames {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	temps := make(map[string]string, len(paths))
	cleanup := func() {
		for _, tmp := range temps {
			os.Remove(tmp)
		}
	}

	for _, p := range paths {
		frame := frames[p]
		tmp, err := w.writeTemp(p, WriteOptions{Headers: frame.Header(), Records: frame.Records()})
		if err != nil {
			cleanup()
			return err
		}
		temps[p] = tmp
	}

	var errs []error
	for _, p := range paths {
		if err := os.Rename(temps[p], p); err != nil {
			errs = append(errs, fmt.Errorf("failed to move %s into place: %w", p, err))
			continue
		}
		delete(temps, p)
		w.logger.Info("csv_written",
			slog.String("file_path", p),
			slog.Int("record_count", frames[p].Len()))
	}
	cleanup()
	return errors.Join(errs...)
}

func (w *CSVWriter) writeTemp(filePath string, options WriteOptions) (string, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := file.Name()

	writer := csv.NewWriter(file)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			file.Close()
			os.Remove(tmp)
			return "", fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			file.Close()
			os.Remove(tmp)
			return "", fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to flush %s: %w", filePath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close %s: %w", filePath, err)
	}
	return tmp, nil
}
