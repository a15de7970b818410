package dataprocessing

import "github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"

// MinMaxScale rescales every value column not in exclude to [0, 1].
// Identifier columns are never scaled. A constant column becomes 0 and
// missing values stay missing.
func MinMaxScale(f *Frame, exclude []string) *Frame {
	out := f.Clone()
	skip := make(map[string]struct{}, len(exclude))
	for _, c := range exclude {
		skip[c] = struct{}{}
	}

	for c, col := range out.Columns {
		if _, ok := skip[col]; ok || domain.IsIdentifierColumn(col) {
			continue
		}
		lo, hi, ok := nanRange(out.Column(col))
		if !ok {
			continue
		}
		span := hi - lo
		for r := range out.Rows {
			v := out.Rows[r].Values[c]
			if IsMissing(v) {
				continue
			}
			if span == 0 {
				out.Rows[r].Values[c] = 0
				continue
			}
			out.Rows[r].Values[c] = (v - lo) / span
		}
	}
	return out
}
