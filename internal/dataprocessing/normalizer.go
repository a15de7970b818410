package dataprocessing

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sachi-35/crop-yield-prediction/internal/geography"
	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// NormalizeResult is the outcome of standardizing one raw source
type NormalizeResult struct {
	Frame *Frame
	// DroppedRows counts rows with an unusable year or a blank state.
	DroppedRows int
	// Unmapped lists state or subdivision names that passed through
	// without resolving to a canonical state.
	Unmapped []string
	// Issues holds the data errors found while normalizing. Callers
	// abort on the fatal ones and report the rest.
	Issues []*DataError
}

// Normalizer renames raw source columns to the canonical schema and
// canonicalizes state names.
type Normalizer struct {
	resolver *geography.Resolver
	logger   *slog.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(resolver *geography.Resolver, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		resolver: resolver,
		logger:   logger.With(slog.String("component", "normalizer")),
	}
}

type columnPlan struct {
	stateIdx  int
	yearIdx   int
	cropIdx   int
	filterIdx int
	valueIdx  []int
	columns   []string
}

// Normalize maps a raw table onto the canonical schema of its source.
func (n *Normalizer) Normalize(spec SourceSpec, raw *RawTable) (*NormalizeResult, error) {
	plan, err := n.plan(spec, raw)
	if err != nil {
		return nil, err
	}

	frame := NewFrame(string(spec.Kind), spec.HasCrop(), plan.columns)
	result := &NormalizeResult{Frame: frame}
	kept := 0

	for _, rec := range raw.Records {
		if plan.filterIdx >= 0 && raw.Cell(rec, plan.filterIdx) != spec.Filter.Equals {
			continue
		}
		kept++

		year, ok := ParseYear(raw.Cell(rec, plan.yearIdx))
		if !ok {
			result.DroppedRows++
			continue
		}

		state := spec.ConstantState
		if plan.stateIdx >= 0 {
			state = raw.Cell(rec, plan.stateIdx)
		}
		if spec.Reconcile {
			state = n.resolver.TitleCase(state)
		} else {
			state = n.resolver.CanonicalState(state)
		}
		if state == "" {
			result.DroppedRows++
			continue
		}

		crop := ""
		if plan.cropIdx >= 0 {
			crop = raw.Cell(rec, plan.cropIdx)
		}

		values := make([]float64, len(plan.valueIdx))
		for i, idx := range plan.valueIdx {
			values[i] = ParseValue(raw.Cell(rec, idx))
		}
		frame.Rows = append(frame.Rows, Row{State: state, Year: year, Crop: crop, Values: values})
	}

	if kept == 0 {
		return nil, NewEmptyDatasetError(raw.Source, "no rows left after filtering")
	}
	if frame.Len() == 0 {
		return nil, NewEmptyDatasetError(raw.Source, "no rows with a usable state and year")
	}

	if result.DroppedRows > 0 {
		n.logger.Warn("dropped_unusable_rows",
			slog.String("source", string(spec.Kind)),
			slog.Int("dropped", result.DroppedRows))
	}

	if spec.Reconcile {
		reconciled, unmapped, err := ReconcileSubdivisions(frame, n.resolver)
		if err != nil {
			return nil, err
		}
		reconciled.Name = frame.Name
		result.Frame = reconciled
		result.Unmapped = unmapped
		for _, name := range unmapped {
			issue := NewUnmappableGeographyError(raw.Source, name)
			result.Issues = append(result.Issues, issue)
			n.logger.Warn("unmappable_geography",
				slog.String("source", string(spec.Kind)),
				slog.String("subdivision", name),
				slog.String("error", issue.Error()))
		}
	} else {
		for _, state := range frame.States() {
			if n.resolver.IsCanonical(state) {
				continue
			}
			issue := NewUnknownStateError(raw.Source, state)
			result.Issues = append(result.Issues, issue)
			result.Unmapped = append(result.Unmapped, state)
			n.logger.Warn("unknown_state",
				slog.String("source", string(spec.Kind)),
				slog.String("state", state),
				slog.String("error", issue.Error()))
		}
	}

	if err := checkSchema(spec, result.Frame, raw.Source); err != nil {
		return nil, err
	}

	n.logger.Info("source_normalized",
		slog.String("source", string(spec.Kind)),
		slog.Int("rows", result.Frame.Len()),
		slog.Int("columns", len(result.Frame.Columns)))

	return result, nil
}

func (n *Normalizer) plan(spec SourceSpec, raw *RawTable) (*columnPlan, error) {
	p := &columnPlan{stateIdx: -1, yearIdx: -1, cropIdx: -1, filterIdx: -1}

	require := func(name string) (int, error) {
		idx := raw.ColumnIndex(name)
		if idx < 0 {
			return -1, NewSchemaViolationError(raw.Source, name, "required column not found")
		}
		return idx, nil
	}

	var err error
	if spec.ConstantState == "" {
		if p.stateIdx, err = require(spec.StateColumn); err != nil {
			return nil, err
		}
	}
	if p.yearIdx, err = require(spec.YearColumn); err != nil {
		return nil, err
	}
	if spec.CropColumn != "" {
		if p.cropIdx, err = require(spec.CropColumn); err != nil {
			return nil, err
		}
	}
	if spec.Filter != nil {
		if p.filterIdx, err = require(spec.Filter.Column); err != nil {
			return nil, err
		}
	}

	for _, m := range spec.Columns {
		idx, err := require(m.Raw)
		if err != nil {
			return nil, err
		}
		p.valueIdx = append(p.valueIdx, idx)
		p.columns = append(p.columns, m.Canonical)
	}

	if spec.DynamicPattern != "" {
		pattern := strings.ToUpper(spec.DynamicPattern)
		identifiers := map[int]bool{p.stateIdx: true, p.yearIdx: true, p.cropIdx: true, p.filterIdx: true}
		for i, h := range raw.Header {
			if identifiers[i] || !strings.Contains(strings.ToUpper(h), pattern) {
				continue
			}
			name := DynamicColumnName(h)
			if containsString(p.columns, name) {
				continue
			}
			p.valueIdx = append(p.valueIdx, i)
			p.columns = append(p.columns, name)
		}
		if len(p.columns) == 0 {
			return nil, NewSchemaViolationError(raw.Source, "*"+spec.DynamicPattern+"*",
				"no column matches pattern")
		}
	}

	return p, nil
}

// DynamicColumnName turns a raw header such as "RICE YIELD (Kg per ha)"
// into "RICE_YIELD_Kg_per_ha".
func DynamicColumnName(header string) string {
	r := strings.NewReplacer(" ", "_", "(", "", ")", "", "/", "_")
	return r.Replace(strings.TrimSpace(header))
}

func checkSchema(spec SourceSpec, f *Frame, file string) error {
	schema, ok := domain.SchemaFor(spec.Kind)
	if !ok {
		return fmt.Errorf("no schema registered for %q", spec.Kind)
	}
	if schema.HasCrop && !f.HasCrop {
		return NewSchemaViolationError(file, domain.ColumnCrop, "expected column absent after renaming")
	}
	for _, col := range schema.Columns {
		if !f.HasColumn(col) {
			return NewSchemaViolationError(file, col, "expected column absent after renaming")
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
