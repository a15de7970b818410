package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Sachi-35/crop-yield-prediction/internal/infrastructure"
)

// Health states
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                       `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Version   string                       `json:"version"`
	Runtime   *infrastructure.RuntimeStats `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth     `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// CatalogStatter reports catalog contents
type CatalogStatter interface {
	Stats() CatalogStats
}

// HealthService reports liveness and readiness
type HealthService struct {
	version    string
	dirs       map[string]string
	catalog    CatalogStatter
	runtime    *infrastructure.RuntimeMetrics
	thresholds infrastructure.RuntimeThresholds
	logger     *slog.Logger
}

// NewHealthService creates a health service. dirs names the data
// directories that must exist for the service to be ready.
func NewHealthService(version string, dirs map[string]string, catalog CatalogStatter, runtime *infrastructure.RuntimeMetrics, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	if runtime == nil {
		runtime, _ = infrastructure.NewRuntimeMetrics(nil)
	}
	return &HealthService{
		version:    version,
		dirs:       dirs,
		catalog:    catalog,
		runtime:    runtime,
		thresholds: infrastructure.DefaultRuntimeThresholds(),
		logger:     logger.With(slog.String("component", "health_service")),
	}
}

// SetThresholds overrides the runtime thresholds
func (hs *HealthService) SetThresholds(th infrastructure.RuntimeThresholds) {
	hs.thresholds = th
}

// HealthCheck reports liveness. The process is degraded, not down, when a
// runtime threshold is exceeded.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	stats := hs.runtime.Collect(ctx)
	status := HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   &stats,
	}

	if over := stats.Exceeded(hs.thresholds); len(over) > 0 {
		status.Status = StatusDegraded
		status.Services = map[string]ServiceHealth{
			"runtime": {Status: StatusDegraded, Message: fmt.Sprint(over)},
		}
		hs.logger.WarnContext(ctx, "runtime_thresholds_exceeded", slog.Any("exceeded", over))
	}
	return status
}

// ReadinessCheck reports whether the data directories exist and the
// catalog holds a master table
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]ServiceHealth, len(hs.dirs)+1),
	}

	for name, dir := range hs.dirs {
		status.Services[name] = checkDir(dir)
	}
	status.Services["catalog"] = hs.checkCatalog()

	for _, s := range status.Services {
		if s.Status != StatusReady {
			status.Status = StatusNotReady
			break
		}
	}
	if status.Status != StatusReady {
		hs.logger.DebugContext(ctx, "readiness_check_not_ready")
	}
	return status
}

func (hs *HealthService) checkCatalog() ServiceHealth {
	if hs.catalog == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "catalog not configured"}
	}
	stats := hs.catalog.Stats()
	if !stats.Loaded {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("master table not loaded from %s", stats.Path)}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%d rows, %d states, %d crops", stats.Rows, stats.States, stats.Crops),
	}
}

func checkDir(dir string) ServiceHealth {
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return ServiceHealth{Status: StatusNotReady, Message: err.Error()}
	case !info.IsDir():
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("%s is not a directory", dir)}
	}
	return ServiceHealth{Status: StatusReady}
}
