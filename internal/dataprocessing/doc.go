// Package dataprocessing reconciles heterogeneous agricultural statistics
// into a single master table keyed by state, year and crop.
//
// # Architecture
//
// The package is organized around an in-memory Frame and a set of pure
// transformations over it:
//
// 1. Parser: reads CSV files and Excel workbooks into raw tables
// 2. Normalizer: maps raw columns onto the canonical schema of each source
// 3. Reconciler: expands meteorological subdivisions into states
// 4. Imputation: fills gaps by interpolation, state mean, then global mean
// 5. Merger: joins the cleaned sources onto the crop-yield table
// 6. Master: deduplicates, repairs and finalizes the merged dataset
// 7. Scaling: min-max normalization for model-ready copies
//
// # Usage
//
// Standardizing a source:
//
//	raw, err := dataprocessing.ReadRawTable("data/raw/crop_yield_1997_2020.csv", "")
//	if err != nil {
//	    return err
//	}
//	result, err := normalizer.Normalize(spec, raw)
//
// Cleaning and merging:
//
//	clean, err := dataprocessing.Impute(result.Frame, nil)
//	merged, err := dataprocessing.Merge(dataprocessing.MergeInputs{CropYield: clean})
//
// Building the master table:
//
//	master, err := dataprocessing.BuildMaster(merged, dataprocessing.DefaultMasterOptions())
//
// # Missing values
//
// Missing values are NaN in memory and empty cells on disk. Non-numeric
// cells in value columns are read as missing.
package dataprocessing
