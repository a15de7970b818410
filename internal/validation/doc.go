// Package validation checks pipeline input files and output directories
// before a step reads or writes them. Failures are reported as
// dataprocessing data errors so callers classify them like parse failures.
package validation
