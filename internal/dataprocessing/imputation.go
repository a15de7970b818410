package dataprocessing

import (
	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// Impute fills missing values per state with a fallback chain: linear
// interpolation across years, then the state mean, then the global mean.
// Rows are returned ordered by state and year. Means are taken over values
// observed before imputation. An empty column list imputes every column.
func Impute(f *Frame, columns []string) (*Frame, error) {
	out, err := f.SortBy(domain.ColumnState, domain.ColumnYear)
	if err != nil {
		return nil, err
	}
	fillColumns(out, columns, true)
	return out, nil
}

// FillGroupMeans fills missing values with the state mean, then the global
// mean, without interpolating. Row order is preserved.
func FillGroupMeans(f *Frame, columns []string) *Frame {
	out := f.Clone()
	fillColumns(out, columns, false)
	return out
}

func fillColumns(f *Frame, columns []string, interpolate bool) {
	if len(columns) == 0 {
		columns = f.Columns
	}
	groups := groupRowsByState(f)

	for _, col := range columns {
		idx := f.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		series := make([][]float64, len(groups))
		for g, rows := range groups {
			s := make([]float64, len(rows))
			for i, r := range rows {
				s[i] = f.Rows[r].Values[idx]
			}
			series[g] = s
		}

		filled := FillSeries(series, interpolate)

		for g, rows := range groups {
			for i, r := range rows {
				f.Rows[r].Values[idx] = filled[g][i]
			}
		}
	}
}

// groupRowsByState returns row indexes per state in first-seen order
func groupRowsByState(f *Frame) [][]int {
	pos := make(map[string]int)
	var groups [][]int
	for i, row := range f.Rows {
		g, ok := pos[row.State]
		if !ok {
			g = len(groups)
			pos[row.State] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// FillSeries applies the fallback chain to one column split into per-group
// series. A value missing in every group stays missing.
func FillSeries(series [][]float64, interpolate bool) [][]float64 {
	var all []float64
	groupMeans := make([]float64, len(series))
	for g, s := range series {
		groupMeans[g] = nanMean(s)
		all = append(all, s...)
	}
	globalMean := nanMean(all)

	out := make([][]float64, len(series))
	for g, s := range series {
		filled := make([]float64, len(s))
		copy(filled, s)
		if interpolate {
			interpolateLinear(filled)
		}
		for i, v := range filled {
			if !IsMissing(v) {
				continue
			}
			if !IsMissing(groupMeans[g]) {
				filled[i] = groupMeans[g]
			} else {
				filled[i] = globalMean
			}
		}
		out[g] = filled
	}
	return out
}

// interpolateLinear fills gaps in place. Interior gaps are interpolated
// linearly by position; trailing gaps repeat the last observed value.
// Leading gaps are left for the caller.
func interpolateLinear(s []float64) {
	last := -1
	for i, v := range s {
		if IsMissing(v) {
			continue
		}
		if last >= 0 && i-last > 1 {
			step := (v - s[last]) / float64(i-last)
			for k := last + 1; k < i; k++ {
				s[k] = s[last] + step*float64(k-last)
			}
		}
		last = i
	}
	if last >= 0 {
		for k := last + 1; k < len(s); k++ {
			s[k] = s[last]
		}
	}
}
