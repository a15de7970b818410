package http

import (
	"context"
)

// DataServiceInterface defines the catalog lookups served over HTTP
type DataServiceInterface interface {
	States(ctx context.Context) ([]string, error)
	Crops(ctx context.Context, state string) ([]string, error)
}
