package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Sachi-35/crop-yield-prediction/internal/dataprocessing"
	"github.com/Sachi-35/crop-yield-prediction/pkg/contracts/domain"
)

// CatalogStats summarizes the loaded master table
type CatalogStats struct {
	Loaded   bool      `json:"loaded"`
	Path     string    `json:"path"`
	Rows     int       `json:"rows"`
	States   int       `json:"states"`
	Crops    int       `json:"crops"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// catalog is an immutable index over one master table snapshot
type catalog struct {
	states       []string
	crops        []string
	cropsByState map[string][]string
	rows         int
	loadedAt     time.Time
}

// DataService answers state and crop enumeration queries from the master
// table. The table is read once and swapped atomically on Reload.
type DataService struct {
	masterPath string
	logger     *slog.Logger

	mu      sync.RWMutex
	current *catalog
}

// NewDataService creates a catalog over the master table at masterPath.
// Nothing is read until Load is called.
func NewDataService(masterPath string, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{
		masterPath: masterPath,
		logger:     logger.With(slog.String("component", "data_service")),
	}
}

// Load reads the master table and replaces the current catalog. On error
// the previous catalog, if any, stays in place.
func (ds *DataService) Load(ctx context.Context) error {
	frame, err := dataprocessing.ReadFrame(ds.masterPath)
	if err != nil {
		ds.logger.WarnContext(ctx, "catalog_load_failed",
			slog.String("path", ds.masterPath),
			slog.String("error", err.Error()))
		return err
	}

	c := buildCatalog(dataprocessing.MasterRecords(frame))

	ds.mu.Lock()
	ds.current = c
	ds.mu.Unlock()

	ds.logger.InfoContext(ctx, "catalog_loaded",
		slog.String("path", ds.masterPath),
		slog.Int("rows", c.rows),
		slog.Int("states", len(c.states)),
		slog.Int("crops", len(c.crops)))
	return nil
}

// Reload re-reads the master table, typically after a pipeline run
func (ds *DataService) Reload(ctx context.Context) error {
	return ds.Load(ctx)
}

// States returns the distinct states of the master table in table order
func (ds *DataService) States(ctx context.Context) ([]string, error) {
	c, err := ds.snapshot()
	if err != nil {
		return nil, err
	}
	if len(c.states) == 0 {
		return nil, ErrNoStates
	}
	return append([]string(nil), c.states...), nil
}

// Crops returns the distinct crops of the master table. A non-empty state
// restricts the result to that state, matched case-insensitively.
func (ds *DataService) Crops(ctx context.Context, state string) ([]string, error) {
	c, err := ds.snapshot()
	if err != nil {
		return nil, err
	}

	state = strings.TrimSpace(state)
	if state == "" {
		if len(c.crops) == 0 {
			return nil, ErrNoCrops
		}
		return append([]string(nil), c.crops...), nil
	}

	crops := c.cropsByState[strings.ToLower(state)]
	if len(crops) == 0 {
		ds.logger.DebugContext(ctx, "crops_not_found", slog.String("state", state))
		return nil, fmt.Errorf("%w for state %q", ErrNoCrops, state)
	}
	return append([]string(nil), crops...), nil
}

// Stats reports what the catalog currently holds
func (ds *DataService) Stats() CatalogStats {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	stats := CatalogStats{Path: ds.masterPath}
	if ds.current == nil {
		return stats
	}
	stats.Loaded = true
	stats.Rows = ds.current.rows
	stats.States = len(ds.current.states)
	stats.Crops = len(ds.current.crops)
	stats.LoadedAt = ds.current.loadedAt
	return stats
}

func (ds *DataService) snapshot() (*catalog, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.current == nil {
		return nil, ErrCatalogNotLoaded
	}
	return ds.current, nil
}

// buildCatalog keeps first-appearance order. The master table is written
// sorted by (state, year, crop), so the order is stable across runs.
func buildCatalog(records []domain.MasterRecord) *catalog {
	c := &catalog{
		cropsByState: make(map[string][]string),
		rows:         len(records),
		loadedAt:     time.Now(),
	}
	seenState := make(map[string]bool)
	seenCrop := make(map[string]bool)
	seenPair := make(map[string]bool)

	for _, rec := range records {
		if rec.State == "" {
			continue
		}
		if !seenState[rec.State] {
			seenState[rec.State] = true
			c.states = append(c.states, rec.State)
		}
		if rec.Crop == "" {
			continue
		}
		if !seenCrop[rec.Crop] {
			seenCrop[rec.Crop] = true
			c.crops = append(c.crops, rec.Crop)
		}
		key := strings.ToLower(rec.State)
		if pair := key + "\x00" + rec.Crop; !seenPair[pair] {
			seenPair[pair] = true
			c.cropsByState[key] = append(c.cropsByState[key], rec.Crop)
		}
	}
	return c
}
