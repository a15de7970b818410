package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// RuntimeMetrics publishes Go runtime gauges
type RuntimeMetrics struct {
	startTime time.Time

	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	sysMemory  metric.Int64Gauge
	gcCount    metric.Int64Gauge
	uptime     metric.Float64Gauge
}

// RuntimeStats is one runtime snapshot
type RuntimeStats struct {
	Goroutines     int           `json:"goroutines"`
	HeapAllocBytes uint64        `json:"heap_alloc_bytes"`
	SysBytes       uint64        `json:"sys_bytes"`
	NumGC          uint32        `json:"num_gc"`
	LastGCPause    time.Duration `json:"last_gc_pause"`
	Uptime         time.Duration `json:"uptime"`
	GoVersion      string        `json:"go_version"`
	NumCPU         int           `json:"num_cpu"`
}

// RuntimeThresholds bounds what a healthy process looks like. Zero disables
// a bound.
type RuntimeThresholds struct {
	HeapAllocMB int64
	Goroutines  int
}

// DefaultRuntimeThresholds returns the thresholds used by the health check
func DefaultRuntimeThresholds() RuntimeThresholds {
	return RuntimeThresholds{
		HeapAllocMB: 1024,
		Goroutines:  10000,
	}
}

// Exceeded lists the thresholds the snapshot is over
func (s RuntimeStats) Exceeded(th RuntimeThresholds) []string {
	var over []string
	if th.HeapAllocMB > 0 && int64(s.HeapAllocBytes/1024/1024) > th.HeapAllocMB {
		over = append(over, fmt.Sprintf("heap %dMB exceeds %dMB", s.HeapAllocBytes/1024/1024, th.HeapAllocMB))
	}
	if th.Goroutines > 0 && s.Goroutines > th.Goroutines {
		over = append(over, fmt.Sprintf("%d goroutines exceed %d", s.Goroutines, th.Goroutines))
	}
	return over
}

// NewRuntimeMetrics creates the runtime gauges. A nil meter yields no-op
// instruments.
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	var errs []error
	gauge := func(name, desc, unit string) metric.Int64Gauge {
		g, err := meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return g
	}
	uptime, err := meter.Float64Gauge("process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"), metric.WithUnit("s"))
	errs = append(errs, err)

	rm := &RuntimeMetrics{
		startTime:  time.Now(),
		goroutines: gauge("runtime_goroutines", "Number of active goroutines", "{goroutine}"),
		heapAlloc:  gauge("runtime_heap_alloc_bytes", "Bytes of allocated heap objects", "By"),
		sysMemory:  gauge("runtime_sys_bytes", "Memory obtained from the OS", "By"),
		gcCount:    gauge("runtime_gc_count", "Completed GC cycles", "{cycle}"),
		uptime:     uptime,
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return rm, nil
}

// Collect takes a snapshot and records it on the gauges
func (rm *RuntimeMetrics) Collect(ctx context.Context) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RuntimeStats{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		SysBytes:       mem.Sys,
		NumGC:          mem.NumGC,
		LastGCPause:    time.Duration(mem.PauseNs[(mem.NumGC+255)%256]),
		Uptime:         time.Since(rm.startTime),
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
	}

	rm.goroutines.Record(ctx, int64(stats.Goroutines))
	rm.heapAlloc.Record(ctx, int64(stats.HeapAllocBytes))
	rm.sysMemory.Record(ctx, int64(stats.SysBytes))
	rm.gcCount.Record(ctx, int64(stats.NumGC))
	rm.uptime.Record(ctx, stats.Uptime.Seconds())
	return stats
}

// Run collects every interval until ctx is done
func (rm *RuntimeMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rm.Collect(ctx)
	for {
		select {
		case <-ticker.C:
			rm.Collect(ctx)
		case <-ctx.Done():
			return
		}
	}
}
