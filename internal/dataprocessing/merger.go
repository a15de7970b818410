package dataprocessing

import (
	"github.com/go-gota/gota/dataframe"

	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// MergeInputs holds the cleaned tables joined into the merged dataset
type MergeInputs struct {
	CropYield    *Frame
	DistrictCrop *Frame
	Fertilizer   *Frame
	Pesticides   *Frame
	Rainfall     *Frame
}

// Merge left-joins every auxiliary table onto the crop-yield table, keeping
// its row grain and order. District features and fertilizer totals are
// averaged per (state, year) first, pesticides are summed per year into a
// country total, and rainfall from the crop-yield table and the IMD series
// is averaged when both are present. Zero yields are repaired afterwards.
func Merge(in MergeInputs) (*Frame, error) {
	if in.CropYield == nil || !in.CropYield.HasCrop {
		return nil, NewSchemaViolationError("crop_yield", domain.ColumnCrop, "crop-yield table must be keyed by crop")
	}
	j := newJoiner(in.CropYield)

	if in.DistrictCrop != nil {
		district, err := meanByStateYear(in.DistrictCrop)
		if err != nil {
			return nil, err
		}
		j.join(district, preferObserved, domain.ColumnState, domain.ColumnYear)
	}

	if in.Fertilizer != nil {
		if !in.Fertilizer.HasColumn(domain.ColumnFertilizerTotal) {
			return nil, NewSchemaViolationError("fertilizer", domain.ColumnFertilizerTotal, "required column not found")
		}
		totals, err := in.Fertilizer.Select(domain.ColumnFertilizerTotal)
		if err != nil {
			return nil, err
		}
		fertilizer, err := meanByStateYear(totals)
		if err != nil {
			return nil, err
		}
		j.join(fertilizer, preferObserved, domain.ColumnState, domain.ColumnYear)
	}

	if in.Rainfall != nil {
		if !in.Rainfall.HasColumn(domain.ColumnRainfall) {
			return nil, NewSchemaViolationError("rainfall", domain.ColumnRainfall, "required column not found")
		}
		annual, err := in.Rainfall.Select(domain.ColumnRainfall)
		if err != nil {
			return nil, err
		}
		rainfall, err := meanByStateYear(annual)
		if err != nil {
			return nil, err
		}
		j.join(rainfall, averageObserved, domain.ColumnState, domain.ColumnYear)
	}

	if in.Pesticides != nil {
		if !in.Pesticides.HasColumn(domain.ColumnPesticides) {
			return nil, NewSchemaViolationError("pesticides", domain.ColumnPesticides, "required column not found")
		}
		totals, err := totalByYear(in.Pesticides, domain.ColumnPesticides, domain.ColumnPesticidesTotalCountry)
		if err != nil {
			return nil, err
		}
		j.join(totals, preferObserved, domain.ColumnYear)
	}

	out, err := j.frame("master_dataset")
	if err != nil {
		return nil, err
	}
	return RepairFalseZeros(out), nil
}

// overlap is a side column that the joined table already carried. It is
// joined under an alias and folded back into the column afterwards.
type overlap struct {
	column  string
	alias   string
	combine func(base, side float64) float64
}

// joiner accumulates left joins onto a base table
type joiner struct {
	df       dataframe.DataFrame
	columns  []string
	overlaps []overlap
}

func newJoiner(base *Frame) *joiner {
	columns := make([]string, len(base.Columns))
	copy(columns, base.Columns)
	return &joiner{df: base.DataFrame(), columns: columns}
}

// join left-joins the side frame's value columns on keys
func (j *joiner) join(side *Frame, combine func(base, side float64) float64, keys ...string) {
	df := side.DataFrame().Select(append(append([]string{}, keys...), side.Columns...))
	for _, c := range side.Columns {
		if !containsString(j.columns, c) {
			j.columns = append(j.columns, c)
			continue
		}
		alias := c + "_" + side.Name
		df = df.Rename(alias, c)
		j.overlaps = append(j.overlaps, overlap{column: c, alias: alias, combine: combine})
	}
	j.df = j.df.LeftJoin(df, keys...)
}

// frame reads the joined table back, resolving overlapping columns
func (j *joiner) frame(name string) (*Frame, error) {
	all := append([]string{}, j.columns...)
	for _, o := range j.overlaps {
		all = append(all, o.alias)
	}
	out, err := frameFromDataFrame(name, true, all, j.df)
	if err != nil {
		return nil, err
	}

	aliases := make([]string, 0, len(j.overlaps))
	for _, o := range j.overlaps {
		col, alias := out.ColumnIndex(o.column), out.ColumnIndex(o.alias)
		for r := range out.Rows {
			vals := out.Rows[r].Values
			vals[col] = o.combine(vals[col], vals[alias])
		}
		aliases = append(aliases, o.alias)
	}
	if len(aliases) == 0 {
		return out, nil
	}
	return out.Drop(aliases...)
}

// averageObserved averages the two values, ignoring a missing one
func averageObserved(base, side float64) float64 {
	return nanMean([]float64{base, side})
}

// preferObserved takes the side value unless it is missing
func preferObserved(base, side float64) float64 {
	if IsMissing(side) {
		return base
	}
	return side
}

// totalByYear sums a column across all states for each year into a
// year-keyed table holding the total under the name total.
func totalByYear(f *Frame, column, total string) (*Frame, error) {
	out := NewFrame(total, false, []string{total})
	if f.Len() == 0 {
		return out, nil
	}
	picked, err := f.Select(column)
	if err != nil {
		return nil, err
	}
	groups := picked.DataFrame().GroupBy(domain.ColumnYear)
	if groups.Err != nil {
		return nil, groups.Err
	}
	for _, g := range groups.GetGroups() {
		part, err := frameFromDataFrame(f.Name, false, []string{column}, g)
		if err != nil {
			return nil, err
		}
		if part.Len() == 0 {
			continue
		}
		out.AddRow(domain.NationalState, part.Rows[0].Year, "", []float64{nanSum(part.Column(column))})
	}
	return out.SortBy(domain.ColumnYear)
}

// RepairFalseZeros treats zero in yield-style columns as a recording gap.
// A zero is replaced by its state's non-zero mean, or by the non-zero mean
// across all states when the state has none, or becomes missing when no
// non-zero value exists at all.
func RepairFalseZeros(f *Frame) *Frame {
	out := f.Clone()
	groups := groupRowsByState(out)

	for c, col := range out.Columns {
		if !domain.IsYieldColumn(col) {
			continue
		}
		for _, rows := range groups {
			vals := make([]float64, len(rows))
			for i, r := range rows {
				vals[i] = out.Rows[r].Values[c]
			}
			mean := nonZeroMean(vals)
			if IsMissing(mean) {
				continue
			}
			for _, r := range rows {
				if out.Rows[r].Values[c] == 0 {
					out.Rows[r].Values[c] = mean
				}
			}
		}

		global := nonZeroMean(out.Column(col))
		for r := range out.Rows {
			if out.Rows[r].Values[c] == 0 {
				out.Rows[r].Values[c] = global
			}
		}
	}
	return out
}
