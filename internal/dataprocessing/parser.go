package dataprocessing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawTable is a source file as read from disk: a header and string cells.
type RawTable struct {
	Source  string
	Header  []string
	Records [][]string
}

// ColumnIndex returns the position of a header, ignoring surrounding
// whitespace, or -1
func (t *RawTable) ColumnIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Cell returns a trimmed cell or "" when the record is short
func (t *RawTable) Cell(record []string, idx int) string {
	return cell(record, idx)
}

// ReadRawTable loads a CSV or Excel workbook. For workbooks, sheet selects
// the worksheet; when empty the first sheet holding rows is used.
func ReadRawTable(path, sheet string) (*RawTable, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewMissingSourceFileError(path, err)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path, sheet)
	default:
		return readCSV(path)
	}
}

func readCSV(path string) (*RawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewEmptyDatasetError(path, "file has no header")
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &RawTable{Source: path, Header: header, Records: records}, nil
}

func readWorkbook(path, sheet string) (*RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var rows [][]string
	if sheet != "" {
		rows, err = f.GetRows(sheet)
		if err != nil {
			return nil, NewSchemaViolationError(path, sheet, "worksheet not found")
		}
	} else {
		for _, name := range f.GetSheetList() {
			if candidate, rowsErr := f.GetRows(name); rowsErr == nil && len(candidate) > 0 {
				rows = candidate
				break
			}
		}
	}
	if len(rows) == 0 {
		return nil, NewEmptyDatasetError(path, "workbook has no rows")
	}
	return &RawTable{Source: path, Header: rows[0], Records: rows[1:]}, nil
}

// ReadFrame loads a canonical CSV written by an earlier step
func ReadFrame(path string) (*Frame, error) {
	raw, err := ReadRawTable(path, "")
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return FrameFromRecords(name, raw.Header, raw.Records)
}
