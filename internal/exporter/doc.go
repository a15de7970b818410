// Package exporter writes pipeline tables to disk.
//
// CSVWriter renders frames in their canonical layout: State, Year and
// optionally Crop first, then value columns, with missing values as empty
// cells. Every write goes through a temporary sibling file that is renamed
// into place, and WriteFrames replaces a set of files as one unit so a
// failed step never leaves a mix of old and new outputs.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(logger)
//	err := writer.WriteFrames(map[string]*dataprocessing.Frame{
//	    paths.CleanedFile("crop_yield_clean.csv"): clean,
//	})
package exporter
