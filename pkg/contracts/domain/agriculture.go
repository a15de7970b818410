package domain

import "strings"

// Canonical column names shared by every pipeline step
const (
	ColumnState                  = "State"
	ColumnYear                   = "Year"
	ColumnCrop                   = "Crop"
	ColumnYield                  = "Yield"
	ColumnRainfall               = "Rainfall"
	ColumnFertilizerN            = "Fertilizer_N"
	ColumnFertilizerP            = "Fertilizer_P"
	ColumnFertilizerK            = "Fertilizer_K"
	ColumnFertilizerTotal        = "Fertilizer_Total"
	ColumnPesticides             = "Pesticides"
	ColumnPesticidesTotalCountry = "Pesticides_total_country"
)

// NationalState labels country-level records
const NationalState = "India"

// YieldMarker identifies yield-style columns, matched case-insensitively
const YieldMarker = "YIELD"

// SourceKind identifies one of the five raw statistical sources
type SourceKind string

const (
	SourceCropYield    SourceKind = "crop_yield"
	SourceDistrictCrop SourceKind = "district_crop"
	SourceFertilizer   SourceKind = "fertilizer"
	SourcePesticide    SourceKind = "pesticide"
	SourceRainfall     SourceKind = "rainfall"
)

// SourceKinds returns every source kind in processing order
func SourceKinds() []SourceKind {
	return []SourceKind{
		SourceCropYield,
		SourceDistrictCrop,
		SourcePesticide,
		SourceFertilizer,
		SourceRainfall,
	}
}

// IsValid reports whether the kind is one of the known sources
func (k SourceKind) IsValid() bool {
	for _, known := range SourceKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Schema describes the canonical record shape of a standardized source
type Schema struct {
	Kind    SourceKind `json:"kind"`
	HasCrop bool       `json:"has_crop"`
	// Columns lists value columns every standardized table must carry.
	Columns []string `json:"columns"`
	// Dynamic is set when value columns are discovered by pattern instead.
	Dynamic bool `json:"dynamic"`
}

var schemas = map[SourceKind]Schema{
	SourceCropYield: {
		Kind:    SourceCropYield,
		HasCrop: true,
		Columns: []string{ColumnYield, ColumnRainfall, ColumnFertilizerN, ColumnPesticides},
	},
	SourceDistrictCrop: {
		Kind:    SourceDistrictCrop,
		Dynamic: true,
	},
	SourcePesticide: {
		Kind:    SourcePesticide,
		Columns: []string{ColumnPesticides},
	},
	SourceFertilizer: {
		Kind:    SourceFertilizer,
		Columns: []string{ColumnFertilizerN, ColumnFertilizerP, ColumnFertilizerK, ColumnFertilizerTotal},
	},
	SourceRainfall: {
		Kind:    SourceRainfall,
		Columns: []string{ColumnRainfall},
	},
}

// SchemaFor returns the canonical schema of a source kind
func SchemaFor(kind SourceKind) (Schema, bool) {
	s, ok := schemas[kind]
	return s, ok
}

// IsYieldColumn reports whether a column holds yield-style values
func IsYieldColumn(name string) bool {
	return strings.Contains(strings.ToUpper(name), YieldMarker)
}

// IsIdentifierColumn reports whether a column is part of the record key
func IsIdentifierColumn(name string) bool {
	switch name {
	case ColumnState, ColumnYear, ColumnCrop:
		return true
	}
	return false
}

// MasterRecord is one row of the final master table
type MasterRecord struct {
	State                  string  `json:"state"`
	Year                   int     `json:"year"`
	Crop                   string  `json:"crop"`
	Yield                  float64 `json:"yield"`
	Rainfall               float64 `json:"rainfall"`
	FertilizerTotal        float64 `json:"fertilizer_total"`
	Pesticides             float64 `json:"pesticides"`
	PesticidesTotalCountry float64 `json:"pesticides_total_country"`
	// Features holds any additional feature columns, keyed by column name.
	Features map[string]float64 `json:"features,omitempty"`
}
