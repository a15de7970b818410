package dataprocessing

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// ColumnMapping renames a raw column to its canonical name
type ColumnMapping struct {
	Raw       string `yaml:"raw" validate:"required"`
	Canonical string `yaml:"canonical" validate:"required"`
}

// RowFilter keeps only rows whose column equals a value
type RowFilter struct {
	Column string `yaml:"column" validate:"required"`
	Equals string `yaml:"equals" validate:"required"`
}

// SourceSpec declares how one raw source maps onto its canonical schema.
// File names are relative to the directories configured for each step.
type SourceSpec struct {
	Kind  domain.SourceKind `yaml:"kind" validate:"required,oneof=crop_yield district_crop fertilizer pesticide rainfall"`
	File  string            `yaml:"file" validate:"required"`
	Sheet string            `yaml:"sheet,omitempty"`

	Output       string `yaml:"output" validate:"required"`
	CleanOutput  string `yaml:"clean_output" validate:"required"`
	ScaledOutput string `yaml:"scaled_output" validate:"required"`

	StateColumn   string          `yaml:"state_column" validate:"required_without=ConstantState"`
	ConstantState string          `yaml:"constant_state"`
	YearColumn    string          `yaml:"year_column" validate:"required"`
	CropColumn    string          `yaml:"crop_column"`
	Columns       []ColumnMapping `yaml:"columns" validate:"required_without=DynamicPattern,dive"`
	// DynamicPattern selects every column whose header contains it,
	// case-insensitively.
	DynamicPattern string     `yaml:"dynamic_pattern"`
	Filter         *RowFilter `yaml:"filter,omitempty"`

	// Reconcile marks state cells as meteorological subdivisions.
	Reconcile bool `yaml:"reconcile"`
	// Unscaled lists value columns kept out of min-max scaling.
	Unscaled []string `yaml:"unscaled"`
}

// HasCrop reports whether the source is keyed by crop
func (s SourceSpec) HasCrop() bool {
	return s.CropColumn != ""
}

type sourceFile struct {
	Sources []SourceSpec `yaml:"sources"`
}

// DefaultSourceSpecs returns the built-in mapping for the five sources
func DefaultSourceSpecs() []SourceSpec {
	return []SourceSpec{
		{
			Kind:         domain.SourceCropYield,
			File:         "crop_yield_1997_2020.csv",
			Output:       "std_crop_yield.csv",
			CleanOutput:  "crop_yield_clean.csv",
			ScaledOutput: "norm_crop_yield.csv",
			StateColumn:  "State",
			YearColumn:   "Crop_Year",
			CropColumn:   "Crop",
			Columns: []ColumnMapping{
				{Raw: "Yield", Canonical: domain.ColumnYield},
				{Raw: "Annual_Rainfall", Canonical: domain.ColumnRainfall},
				{Raw: "Fertilizer", Canonical: domain.ColumnFertilizerN},
				{Raw: "Pesticide", Canonical: domain.ColumnPesticides},
			},
			Unscaled: []string{domain.ColumnYield},
		},
		{
			Kind:           domain.SourceDistrictCrop,
			File:           "district_crop_data.csv",
			Output:         "std_district_crop.csv",
			CleanOutput:    "district_crop_clean.csv",
			ScaledOutput:   "norm_district_crop.csv",
			StateColumn:    "State Name",
			YearColumn:     "Year",
			DynamicPattern: domain.YieldMarker,
		},
		{
			Kind:          domain.SourcePesticide,
			File:          "faostat_pesticide_india.csv",
			Output:        "std_pesticides.csv",
			CleanOutput:   "pesticides_clean.csv",
			ScaledOutput:  "norm_pesticides.csv",
			ConstantState: domain.NationalState,
			YearColumn:    "Year",
			Columns: []ColumnMapping{
				{Raw: "Value", Canonical: domain.ColumnPesticides},
			},
			Filter: &RowFilter{Column: "Element", Equals: "Agricultural Use"},
		},
		{
			Kind:         domain.SourceFertilizer,
			File:         "fertilizer_district_1969_2017.csv",
			Output:       "std_fertilizers.csv",
			CleanOutput:  "fertilizer_clean.csv",
			ScaledOutput: "norm_fertilizer.csv",
			StateColumn:  "State Name",
			YearColumn:   "Year",
			Columns: []ColumnMapping{
				{Raw: "NITROGEN PER HA OF NCA (Kg per ha)", Canonical: domain.ColumnFertilizerN},
				{Raw: "PHOSPHATE PER HA OF NCA (Kg per ha)", Canonical: domain.ColumnFertilizerP},
				{Raw: "POTASH PER HA OF NCA (Kg per ha)", Canonical: domain.ColumnFertilizerK},
				{Raw: "TOTAL CONSUMPTION (tons)", Canonical: domain.ColumnFertilizerTotal},
			},
		},
		{
			Kind:         domain.SourceRainfall,
			File:         "imd_rainfall_1901_2017.csv",
			Output:       "std_rainfall.csv",
			CleanOutput:  "rainfall_clean.csv",
			ScaledOutput: "norm_rainfall.csv",
			StateColumn:  "SUBDIVISION",
			YearColumn:   "YEAR",
			Columns: []ColumnMapping{
				{Raw: "ANNUAL", Canonical: domain.ColumnRainfall},
			},
			Reconcile: true,
		},
	}
}

// LoadSourceSpecs reads source overrides from a YAML file and merges them
// over the defaults by kind. An empty path yields the defaults.
func LoadSourceSpecs(path string) ([]SourceSpec, error) {
	specs := DefaultSourceSpecs()
	if path == "" {
		return specs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source specs: %w", err)
	}

	var file sourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse source specs: %w", err)
	}

	for _, override := range file.Sources {
		if !override.Kind.IsValid() {
			return nil, fmt.Errorf("unknown source kind %q in %s", override.Kind, path)
		}
		for i := range specs {
			if specs[i].Kind == override.Kind {
				specs[i] = override
				break
			}
		}
	}

	if err := ValidateSourceSpecs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// ValidateSourceSpecs checks struct rules and that every kind appears once
func ValidateSourceSpecs(specs []SourceSpec) error {
	validate := validator.New()
	seen := make(map[domain.SourceKind]bool)
	for _, spec := range specs {
		if err := validate.Struct(spec); err != nil {
			return fmt.Errorf("invalid source spec %q: %w", spec.Kind, err)
		}
		if seen[spec.Kind] {
			return fmt.Errorf("duplicate source spec %q", spec.Kind)
		}
		seen[spec.Kind] = true
	}
	for _, kind := range domain.SourceKinds() {
		if !seen[kind] {
			return fmt.Errorf("missing source spec %q", kind)
		}
	}
	return nil
}

// FindSource returns the spec for a kind
func FindSource(specs []SourceSpec, kind domain.SourceKind) (SourceSpec, bool) {
	for _, spec := range specs {
		if spec.Kind == kind {
			return spec, true
		}
	}
	return SourceSpec{}, false
}
