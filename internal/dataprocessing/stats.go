package dataprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// observed returns the non-missing values of a series
func observed(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

// nanMean is the mean of the observed values, or missing when none are.
func nanMean(values []float64) float64 {
	obs := observed(values)
	if len(obs) == 0 {
		return Missing()
	}
	return stat.Mean(obs, nil)
}

// nanSum sums the observed values, or returns missing when none are.
func nanSum(values []float64) float64 {
	obs := observed(values)
	if len(obs) == 0 {
		return Missing()
	}
	return floats.Sum(obs)
}

// nanRange returns min and max of the observed values
func nanRange(values []float64) (float64, float64, bool) {
	obs := observed(values)
	if len(obs) == 0 {
		return 0, 0, false
	}
	return floats.Min(obs), floats.Max(obs), true
}

// nonZeroMean averages observed values that are not zero
func nonZeroMean(values []float64) float64 {
	nz := make([]float64, 0, len(values))
	for _, v := range values {
		if !IsMissing(v) && v != 0 {
			nz = append(nz, v)
		}
	}
	if len(nz) == 0 {
		return Missing()
	}
	return stat.Mean(nz, nil)
}

// aggregate collapses rows sharing the key columns into one row, reducing
// each value column with reduce. Groups come from gota's GroupBy; the
// reduction itself runs on gonum since gota's aggregations do not skip
// missing values. Output rows are ordered by key.
func aggregate(f *Frame, keys []string, reduce func([]float64) float64) (*Frame, error) {
	hasCrop := containsString(keys, domain.ColumnCrop)
	out := NewFrame(f.Name, hasCrop, f.Columns)
	if f.Len() == 0 {
		return out, nil
	}

	groups := f.DataFrame().GroupBy(keys...)
	if groups.Err != nil {
		return nil, fmt.Errorf("group %s by %v: %w", f.Name, keys, groups.Err)
	}
	for _, g := range groups.GetGroups() {
		part, err := frameFromDataFrame(f.Name, hasCrop, f.Columns, g)
		if err != nil {
			return nil, err
		}
		if part.Len() == 0 {
			continue
		}
		vals := make([]float64, len(f.Columns))
		for c, col := range f.Columns {
			vals[c] = reduce(part.Column(col))
		}
		first := part.Rows[0]
		out.Rows = append(out.Rows, Row{State: first.State, Year: first.Year, Crop: first.Crop, Values: vals})
	}
	return out.SortByKey()
}

// meanByStateYear averages rows sharing a (state, year) key
func meanByStateYear(f *Frame) (*Frame, error) {
	return aggregate(f, []string{domain.ColumnState, domain.ColumnYear}, nanMean)
}

// meanByKey averages rows sharing a (state, year, crop) key
func meanByKey(f *Frame) (*Frame, error) {
	return aggregate(f, []string{domain.ColumnState, domain.ColumnYear, domain.ColumnCrop}, nanMean)
}
