package dataprocessing

import (
	"regexp"
	"strings"

	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// WideYieldColumns are the per-crop yield columns the district source
// contributes. The master table keeps yield in long form only.
var WideYieldColumns = []string{
	"RICE_YIELD_Kg_per_ha", "WHEAT_YIELD_Kg_per_ha", "KHARIF_SORGHUM_YIELD_Kg_per_ha",
	"RABI_SORGHUM_YIELD_Kg_per_ha", "SORGHUM_YIELD_Kg_per_ha", "PEARL_MILLET_YIELD_Kg_per_ha",
	"MAIZE_YIELD_Kg_per_ha", "FINGER_MILLET_YIELD_Kg_per_ha", "BARLEY_YIELD_Kg_per_ha",
	"CHICKPEA_YIELD_Kg_per_ha", "PIGEONPEA_YIELD_Kg_per_ha", "MINOR_PULSES_YIELD_Kg_per_ha",
	"GROUNDNUT_YIELD_Kg_per_ha", "SESAMUM_YIELD_Kg_per_ha", "RAPESEED_AND_MUSTARD_YIELD_Kg_per_ha",
	"SAFFLOWER_YIELD_Kg_per_ha", "CASTOR_YIELD_Kg_per_ha", "LINSEED_YIELD_Kg_per_ha",
	"SUNFLOWER_YIELD_Kg_per_ha", "SOYABEAN_YIELD_Kg_per_ha", "OILSEEDS_YIELD_Kg_per_ha",
	"SUGARCANE_YIELD_Kg_per_ha", "COTTON_YIELD_Kg_per_ha",
}

// MasterOptions tunes the master table build
type MasterOptions struct {
	// DropColumns are removed outright when present.
	DropColumns []string
	// FragileColumns get scientific-notation repair. They only matter for
	// columns DropColumns leaves in place.
	FragileColumns []string
	// Threshold is the magnitude at or below which a fragile value is
	// treated as a mis-parsed number.
	Threshold float64
}

// DefaultMasterOptions returns the standard master table settings
func DefaultMasterOptions() MasterOptions {
	return MasterOptions{
		DropColumns:    append(append([]string{}, WideYieldColumns...), domain.ColumnFertilizerN),
		FragileColumns: []string{"BARLEY_YIELD_Kg_per_ha", "LINSEED_YIELD_Kg_per_ha", "SOYABEAN_YIELD_Kg_per_ha"},
		Threshold:      1e-3,
	}
}

// BuildMaster turns the merged dataset into the master table: redundant
// columns are dropped, rows are averaged per (state, year, crop), fragile
// columns are repaired and remaining gaps get state then national means.
func BuildMaster(merged *Frame, opts MasterOptions) (*Frame, error) {
	if merged.Len() == 0 {
		return nil, NewEmptyDatasetError(merged.Name, "merged dataset has no rows")
	}
	if !merged.HasCrop {
		return nil, NewSchemaViolationError(merged.Name, domain.ColumnCrop, "merged dataset must be keyed by crop")
	}

	f, err := merged.Drop(opts.DropColumns...)
	if err != nil {
		return nil, err
	}
	if f, err = f.Drop(RedundantYieldColumns(f)...); err != nil {
		return nil, err
	}
	if f, err = meanByKey(f); err != nil {
		return nil, err
	}
	f = RepairScientificNotation(f, opts.FragileColumns, opts.Threshold)
	f = FillGroupMeans(f, nil)
	f.Name = "master_table"
	return f, nil
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

// normalizeCropName reduces a crop label to upper-case words so that
// "Rapeseed &Mustard" and "RAPESEED_AND_MUSTARD" compare equal.
func normalizeCropName(s string) string {
	s = strings.ToUpper(strings.ReplaceAll(s, "&", " AND "))
	return strings.Join(strings.Fields(nonAlnum.ReplaceAllString(s, " ")), " ")
}

// cropAliases maps crop-yield crop names, as normalized by
// normalizeCropName, to the district source's names for the same crop.
var cropAliases = map[string][]string{
	"BAJRA":                 {"PEARL MILLET"},
	"JOWAR":                 {"SORGHUM", "KHARIF SORGHUM", "RABI SORGHUM"},
	"RAGI":                  {"FINGER MILLET"},
	"GRAM":                  {"CHICKPEA"},
	"ARHAR TUR":             {"PIGEONPEA"},
	"MOONG GREEN GRAM":      {"MINOR PULSES"},
	"URAD":                  {"MINOR PULSES"},
	"MASOOR":                {"MINOR PULSES"},
	"HORSE GRAM":            {"MINOR PULSES"},
	"KHESARI":               {"MINOR PULSES"},
	"MOTH":                  {"MINOR PULSES"},
	"OTHER KHARIF PULSES":   {"MINOR PULSES"},
	"OTHER RABI PULSES":     {"MINOR PULSES"},
	"PEAS AND BEANS PULSES": {"MINOR PULSES"},
	"OTHER OILSEEDS":        {"OILSEEDS"},
}

// RedundantYieldColumns returns wide per-crop yield columns whose crop is
// also present as a long-format Crop value, under its own name or a known
// alias, so the same yield would be recorded twice.
func RedundantYieldColumns(f *Frame) []string {
	crops := make(map[string]struct{})
	for _, row := range f.Rows {
		if row.Crop == "" {
			continue
		}
		name := normalizeCropName(row.Crop)
		crops[name] = struct{}{}
		for _, alias := range cropAliases[name] {
			crops[alias] = struct{}{}
		}
	}

	var out []string
	for _, col := range f.Columns {
		if col == domain.ColumnYield {
			continue
		}
		upper := strings.ToUpper(col)
		pos := strings.Index(upper, "_"+domain.YieldMarker)
		if pos <= 0 {
			continue
		}
		token := normalizeCropName(col[:pos])
		for crop := range crops {
			if crop == token || strings.HasPrefix(crop, token+" ") {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// RepairScientificNotation replaces fragile values at or below threshold
// with the mean of that column's values above it. Missing values and
// absent columns are left alone.
func RepairScientificNotation(f *Frame, columns []string, threshold float64) *Frame {
	out := f.Clone()
	for _, col := range columns {
		idx := out.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		var valid []float64
		for _, row := range out.Rows {
			if v := row.Values[idx]; !IsMissing(v) && v > threshold {
				valid = append(valid, v)
			}
		}
		mean := nanMean(valid)
		for r := range out.Rows {
			if v := out.Rows[r].Values[idx]; !IsMissing(v) && v <= threshold {
				out.Rows[r].Values[idx] = mean
			}
		}
	}
	return out
}

// MasterRecords converts a master table into typed records
func MasterRecords(f *Frame) []domain.MasterRecord {
	records := make([]domain.MasterRecord, 0, f.Len())
	for _, row := range f.Rows {
		rec := domain.MasterRecord{
			State:                  row.State,
			Year:                   row.Year,
			Crop:                   row.Crop,
			Yield:                  Missing(),
			Rainfall:               Missing(),
			FertilizerTotal:        Missing(),
			Pesticides:             Missing(),
			PesticidesTotalCountry: Missing(),
		}
		for c, col := range f.Columns {
			v := row.Values[c]
			switch col {
			case domain.ColumnYield:
				rec.Yield = v
			case domain.ColumnRainfall:
				rec.Rainfall = v
			case domain.ColumnFertilizerTotal:
				rec.FertilizerTotal = v
			case domain.ColumnPesticides:
				rec.Pesticides = v
			case domain.ColumnPesticidesTotalCountry:
				rec.PesticidesTotalCountry = v
			default:
				if rec.Features == nil {
					rec.Features = make(map[string]float64)
				}
				rec.Features[col] = v
			}
		}
		records = append(records, rec)
	}
	return records
}
