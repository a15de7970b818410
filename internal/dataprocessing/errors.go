package dataprocessing

import (
	"errors"
	"fmt"
)

// ErrorKind classifies data errors raised while reconciling sources
type ErrorKind string

const (
	ErrorKindMissingSourceFile   ErrorKind = "missing_source_file"
	ErrorKindSchemaViolation     ErrorKind = "schema_violation"
	ErrorKindEmptyDataset        ErrorKind = "empty_dataset"
	ErrorKindUnmappableGeography ErrorKind = "unmappable_geography"
)

// DataError reports a problem with an input or intermediate table.
// File names the offending table and Element the column or name involved.
type DataError struct {
	Kind    ErrorKind
	File    string
	Element string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *DataError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.File)
	if e.Element != "" {
		msg += fmt.Sprintf(" (%s)", e.Element)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *DataError) Unwrap() error {
	return e.Cause
}

// Fatal reports whether the error aborts the step. Unmappable geography is
// only reported.
func (e *DataError) Fatal() bool {
	return e.Kind != ErrorKindUnmappableGeography
}

// NewMissingSourceFileError reports an input file that does not exist
func NewMissingSourceFileError(file string, cause error) *DataError {
	return &DataError{
		Kind:    ErrorKindMissingSourceFile,
		File:    file,
		Message: "source file not found",
		Cause:   cause,
	}
}

// NewSchemaViolationError reports a missing or malformed column
func NewSchemaViolationError(file, column, message string) *DataError {
	return &DataError{
		Kind:    ErrorKindSchemaViolation,
		File:    file,
		Element: column,
		Message: message,
	}
}

// NewEmptyDatasetError reports a table with no rows left
func NewEmptyDatasetError(file, message string) *DataError {
	return &DataError{
		Kind:    ErrorKindEmptyDataset,
		File:    file,
		Message: message,
	}
}

// NewUnmappableGeographyError reports a subdivision with no mapping that is
// not a known state either
func NewUnmappableGeographyError(file, name string) *DataError {
	return &DataError{
		Kind:    ErrorKindUnmappableGeography,
		File:    file,
		Element: name,
		Message: "subdivision passed through without a known state",
	}
}

// NewUnknownStateError reports a state name outside the canonical set.
// It shares the unmappable geography kind.
func NewUnknownStateError(file, name string) *DataError {
	return &DataError{
		Kind:    ErrorKindUnmappableGeography,
		File:    file,
		Element: name,
		Message: "state is not in the canonical set",
	}
}

// IsKind reports whether err wraps a DataError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *DataError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
