package services

import "errors"

// Catalog errors
var (
	ErrCatalogNotLoaded = errors.New("master table not loaded")
	ErrNoStates         = errors.New("no states found")
	ErrNoCrops          = errors.New("no crops found")
)

// Pipeline errors
var (
	ErrInvalidStep      = errors.New("invalid pipeline step")
	ErrPipelineDisabled = errors.New("pipeline runner not configured")
)
