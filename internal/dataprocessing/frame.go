package dataprocessing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// Row is one keyed record of a frame. Values is aligned with Frame.Columns
// and uses NaN for missing values.
type Row struct {
	State  string
	Year   int
	Crop   string
	Values []float64
}

// Frame is an in-memory table keyed by state and year, optionally crop.
// Rows hold the values for the per-state numeric passes; relational
// operations (load, select, drop, sort, group, join) run on the gota
// DataFrame view. Transformations never mutate their input frame.
type Frame struct {
	Name    string
	HasCrop bool
	Columns []string
	Rows    []Row
}

// NewFrame creates an empty frame with the given value columns
func NewFrame(name string, hasCrop bool, columns []string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Name: name, HasCrop: hasCrop, Columns: cols}
}

// Missing returns the marker used for absent values
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether a value is absent
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.Rows)
}

// ColumnIndex returns the position of a value column or -1
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the frame carries the value column
func (f *Frame) HasColumn(name string) bool {
	return f.ColumnIndex(name) >= 0
}

// Column returns a copy of a value column, or nil when absent
func (f *Frame) Column(name string) []float64 {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row.Values[idx]
	}
	return out
}

// AddRow appends a row, padding or truncating values to the column count
func (f *Frame) AddRow(state string, year int, crop string, values []float64) {
	vals := make([]float64, len(f.Columns))
	for i := range vals {
		if i < len(values) {
			vals[i] = values[i]
		} else {
			vals[i] = Missing()
		}
	}
	f.Rows = append(f.Rows, Row{State: state, Year: year, Crop: crop, Values: vals})
}

// Clone returns a deep copy of the frame
func (f *Frame) Clone() *Frame {
	out := NewFrame(f.Name, f.HasCrop, f.Columns)
	out.Rows = make([]Row, len(f.Rows))
	for i, row := range f.Rows {
		vals := make([]float64, len(row.Values))
		copy(vals, row.Values)
		out.Rows[i] = Row{State: row.State, Year: row.Year, Crop: row.Crop, Values: vals}
	}
	return out
}

// Select returns a new frame restricted to the named value columns, in
// the order given. Unknown names are ignored.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	var names []string
	for _, c := range columns {
		if f.HasColumn(c) && !containsString(names, c) {
			names = append(names, c)
		}
	}
	df := f.DataFrame().Select(append(f.keyColumns(), names...))
	return frameFromDataFrame(f.Name, f.HasCrop, names, df)
}

// Drop returns a new frame without the named value columns
func (f *Frame) Drop(columns ...string) (*Frame, error) {
	var drop, keep []string
	for _, c := range f.Columns {
		if containsString(columns, c) {
			drop = append(drop, c)
		} else {
			keep = append(keep, c)
		}
	}
	if len(drop) == 0 {
		return f.Clone(), nil
	}
	return frameFromDataFrame(f.Name, f.HasCrop, keep, f.DataFrame().Drop(drop))
}

// SortByKey returns the rows stably ordered by state, year and crop
func (f *Frame) SortByKey() (*Frame, error) {
	return f.SortBy(f.keyColumns()...)
}

// SortBy returns the rows stably ordered by the given identifier columns
func (f *Frame) SortBy(keys ...string) (*Frame, error) {
	if f.Len() < 2 || len(keys) == 0 {
		return f.Clone(), nil
	}
	order := make([]dataframe.Order, len(keys))
	for i, k := range keys {
		order[i] = dataframe.Sort(k)
	}
	return frameFromDataFrame(f.Name, f.HasCrop, f.Columns, f.DataFrame().Arrange(order...))
}

// keyColumns lists the identifier columns the frame carries
func (f *Frame) keyColumns() []string {
	if f.HasCrop {
		return []string{domain.ColumnState, domain.ColumnYear, domain.ColumnCrop}
	}
	return []string{domain.ColumnState, domain.ColumnYear}
}

// DataFrame returns the frame as a gota DataFrame: State and Crop as
// strings, Year as integers and value columns as floats, NaN when missing.
func (f *Frame) DataFrame() dataframe.DataFrame {
	n := len(f.Rows)
	states := make([]string, n)
	years := make([]int, n)
	crops := make([]string, n)
	for i, row := range f.Rows {
		states[i] = row.State
		years[i] = row.Year
		crops[i] = row.Crop
	}

	cols := []series.Series{
		series.New(states, series.String, domain.ColumnState),
		series.New(years, series.Int, domain.ColumnYear),
	}
	if f.HasCrop {
		cols = append(cols, series.New(crops, series.String, domain.ColumnCrop))
	}
	for c, name := range f.Columns {
		vals := make([]float64, n)
		for i, row := range f.Rows {
			vals[i] = row.Values[c]
		}
		cols = append(cols, series.New(vals, series.Float, name))
	}
	return dataframe.New(cols...)
}

// frameFromDataFrame reads the identifier columns and the named value
// columns back out of a gota DataFrame. Value columns the DataFrame lacks
// come back missing.
func frameFromDataFrame(name string, hasCrop bool, columns []string, df dataframe.DataFrame) (*Frame, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("dataframe %s: %w", name, df.Err)
	}
	states, ok := stringColumn(df, domain.ColumnState)
	if !ok {
		return nil, NewSchemaViolationError(name, domain.ColumnState, "required column not found")
	}
	years, ok := stringColumn(df, domain.ColumnYear)
	if !ok {
		return nil, NewSchemaViolationError(name, domain.ColumnYear, "required column not found")
	}
	crops := make([]string, df.Nrow())
	if hasCrop {
		if crops, ok = stringColumn(df, domain.ColumnCrop); !ok {
			return nil, NewSchemaViolationError(name, domain.ColumnCrop, "required column not found")
		}
	}

	values := make([][]float64, len(columns))
	for c, col := range columns {
		if s := df.Col(col); s.Err == nil {
			values[c] = s.Float()
		}
	}

	f := NewFrame(name, hasCrop, columns)
	f.Rows = make([]Row, df.Nrow())
	for i := range f.Rows {
		year, ok := ParseYear(years[i])
		if !ok {
			return nil, NewSchemaViolationError(name, domain.ColumnYear,
				fmt.Sprintf("row %d: invalid year %q", i+1, years[i]))
		}
		vals := make([]float64, len(columns))
		for c := range columns {
			if values[c] == nil {
				vals[c] = Missing()
			} else {
				vals[c] = values[c][i]
			}
		}
		f.Rows[i] = Row{State: states[i], Year: year, Crop: crops[i], Values: vals}
	}
	return f, nil
}

// stringColumn renders a column as strings with NA cells blank
func stringColumn(df dataframe.DataFrame, name string) ([]string, bool) {
	s := df.Col(name)
	if s.Err != nil {
		return nil, false
	}
	out := s.Records()
	for i, na := range s.IsNaN() {
		if na {
			out[i] = ""
		}
	}
	return out, true
}

// States returns the distinct states in first-seen order
func (f *Frame) States() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range f.Rows {
		if _, ok := seen[row.State]; ok {
			continue
		}
		seen[row.State] = struct{}{}
		out = append(out, row.State)
	}
	return out
}

// Header returns the on-disk header: identifiers first, then value columns
func (f *Frame) Header() []string {
	header := []string{domain.ColumnState, domain.ColumnYear}
	if f.HasCrop {
		header = append(header, domain.ColumnCrop)
	}
	return append(header, f.Columns...)
}

// Records renders rows as CSV records aligned with Header
func (f *Frame) Records() [][]string {
	records := make([][]string, 0, len(f.Rows))
	for _, row := range f.Rows {
		rec := []string{row.State, strconv.Itoa(row.Year)}
		if f.HasCrop {
			rec = append(rec, row.Crop)
		}
		for _, v := range row.Values {
			rec = append(rec, FormatValue(v))
		}
		records = append(records, rec)
	}
	return records
}

// FrameFromRecords builds a frame from a header and records in the
// canonical layout written by Records. Rows with an unparseable year are
// rejected as a schema violation since canonical files never hold them.
func FrameFromRecords(name string, header []string, records [][]string) (*Frame, error) {
	names := make([]string, len(header))
	var columns []string
	hasCrop := false
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		if names[i] == domain.ColumnCrop {
			hasCrop = true
		}
		if !domain.IsIdentifierColumn(names[i]) {
			columns = append(columns, names[i])
		}
	}
	for _, required := range []string{domain.ColumnState, domain.ColumnYear} {
		if !containsString(names, required) {
			return nil, NewSchemaViolationError(name, required, "required column not found")
		}
	}
	if len(records) == 0 {
		return NewFrame(name, hasCrop, columns), nil
	}

	// cells are normalized first so gota sees one spelling of missing
	table := make([][]string, 0, len(records)+1)
	table = append(table, names)
	for _, rec := range records {
		row := make([]string, len(names))
		for i, col := range names {
			if domain.IsIdentifierColumn(col) {
				row[i] = cell(rec, i)
			} else {
				row[i] = FormatValue(ParseValue(cell(rec, i)))
			}
		}
		table = append(table, row)
	}

	df := dataframe.LoadRecords(table,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.Float),
		dataframe.NaNValues([]string{""}),
		dataframe.WithTypes(map[string]series.Type{
			domain.ColumnState: series.String,
			domain.ColumnYear:  series.String,
			domain.ColumnCrop:  series.String,
		}),
	)
	if df.Err != nil {
		return nil, NewSchemaViolationError(name, "", df.Err.Error())
	}
	return frameFromDataFrame(name, hasCrop, columns, df)
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// ParseValue coerces a cell to a number; anything non-numeric is missing
func ParseValue(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return Missing()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return Missing()
	}
	return v
}

// FormatValue renders a value for CSV output; missing values are empty
func FormatValue(v float64) string {
	if IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseYear parses a four-digit year, tolerating a trailing ".0"
func ParseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	if len(s) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}
